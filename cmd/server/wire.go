package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/maintenance-auth/internal/config"
	"github.com/iliyamo/maintenance-auth/internal/database"
	"github.com/iliyamo/maintenance-auth/internal/ledger"
	"github.com/iliyamo/maintenance-auth/internal/mail"
	"github.com/iliyamo/maintenance-auth/internal/queue"
	"github.com/iliyamo/maintenance-auth/internal/repository"
	"github.com/iliyamo/maintenance-auth/internal/service"
	"github.com/iliyamo/maintenance-auth/internal/token"
)

// app holds the long-lived resources shared by the commands.
type app struct {
	cfg   config.Config
	db    *sqlx.DB
	redis *redis.Client
	svc   *service.AuthService
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	return database.Open(cfg.DBDriver, database.DSN(cfg))
}

// newApp connects to the database and, when enabled, Redis, then assembles
// the service.
func newApp(ctx context.Context, cfg config.Config, rcfg config.RedisConfig, migrate bool) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	rdb := config.NewRedisClient(rcfg)
	if rcfg.Enabled && rdb == nil {
		log.Warnf("redis at %s unreachable; using in-process rate limiting and no revocation cache", rcfg.Address())
	}

	mailer, err := buildMailer(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	tpl, err := mail.LoadTemplates()
	if err != nil {
		db.Close()
		return nil, err
	}

	keys := token.DeriveKeys(cfg.JWTSecret)
	l := ledger.New(repository.NewTokenRepo(db), ledger.WithCache(ledger.NewRedisCache(rdb, "")))
	svc := service.NewAuthService(service.AuthDeps{
		DB:        db,
		Users:     repository.NewUserRepo(db),
		Ledger:    l,
		Issuer:    token.NewIssuer(keys.Access),
		Codec:     token.NewCodec(keys.Link),
		CodeKey:   keys.Code,
		Mailer:    mailer,
		Templates: tpl,
		Settings:  service.SettingsFromConfig(cfg),
	})
	return &app{cfg: cfg, db: db, redis: rdb, svc: svc}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

func sender(cfg config.Config) mail.Recipient {
	return mail.Recipient{Name: cfg.MailSenderName, Email: cfg.MailSenderEmail}
}

// buildMailer selects the transport named by MAIL_MODE.
func buildMailer(cfg config.Config) (mail.Mailer, error) {
	switch cfg.MailMode {
	case mail.ModeDevelopment, "":
		return mail.NewLogMailer(), nil
	case mail.ModeAPI:
		if cfg.MailAPIURL == "" {
			return nil, fmt.Errorf("MAIL_MODE=%s requires MAIL_API_URL", cfg.MailMode)
		}
		return mail.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, sender(cfg), cfg.MailTimeout), nil
	case mail.ModeQueue:
		return queue.NewPublisher(cfg.RabbitURL, cfg.MailQueue), nil
	default:
		return nil, fmt.Errorf("unsupported MAIL_MODE %q", cfg.MailMode)
	}
}
