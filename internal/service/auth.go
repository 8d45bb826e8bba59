package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/maintenance-auth/internal/config"
	"github.com/iliyamo/maintenance-auth/internal/ledger"
	"github.com/iliyamo/maintenance-auth/internal/mail"
	"github.com/iliyamo/maintenance-auth/internal/model"
	"github.com/iliyamo/maintenance-auth/internal/repository"
	"github.com/iliyamo/maintenance-auth/internal/token"
	"github.com/iliyamo/maintenance-auth/internal/utils"
)

// NamespaceEmailConfirmation scopes signed confirmation links.
const NamespaceEmailConfirmation = "email-confirmation"

var codeRe = regexp.MustCompile(`^[0-9]{6}$`)

var errConsumed = errors.New("verified token already used")

// Settings are the tunables of the workflows.
type Settings struct {
	AccessTTL            time.Duration
	VerificationTTL      time.Duration
	VerifiedTTL          time.Duration
	LinkTTL              time.Duration
	BcryptCost           int
	Policy               utils.PasswordPolicy
	PublicURL            string
	ResendConfirmOnLogin bool
}

// SettingsFromConfig copies the workflow settings out of cfg.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		AccessTTL:       cfg.AccessTTL,
		VerificationTTL: cfg.VerificationTTL,
		VerifiedTTL:     cfg.VerifiedTTL,
		LinkTTL:         cfg.LinkTTL,
		BcryptCost:      cfg.BcryptCost,
		Policy: utils.PasswordPolicy{
			MinLength:    cfg.PasswordMinLength,
			RequireDigit: cfg.PasswordRequireDigit,
			RequireLower: cfg.PasswordRequireLower,
			RequireUpper: cfg.PasswordRequireUpper,
		},
		PublicURL:            strings.TrimRight(cfg.PublicURL, "/"),
		ResendConfirmOnLogin: cfg.ResendConfirmOnLogin,
	}
}

// AuthDeps wires the collaborators of AuthService.
type AuthDeps struct {
	DB        *sqlx.DB
	Users     *repository.UserRepo
	Ledger    *ledger.Ledger
	Issuer    *token.Issuer
	Codec     *token.Codec
	CodeKey   []byte
	Mailer    mail.Mailer
	Templates *mail.Templates
	Settings  Settings
}

// AuthService runs sign-up, login, logout and the verification-code flows.
type AuthService struct {
	db        *sqlx.DB
	users     *repository.UserRepo
	ledger    *ledger.Ledger
	issuer    *token.Issuer
	codec     *token.Codec
	codeKey   []byte
	mailer    mail.Mailer
	templates *mail.Templates
	cfg       Settings
}

func NewAuthService(d AuthDeps) *AuthService {
	return &AuthService{
		db:        d.DB,
		users:     d.Users,
		ledger:    d.Ledger,
		issuer:    d.Issuer,
		codec:     d.Codec,
		codeKey:   d.CodeKey,
		mailer:    d.Mailer,
		templates: d.Templates,
		cfg:       d.Settings,
	}
}

// SignUpInput is the sign-up request.
type SignUpInput struct {
	Email    string
	Password string
	FName    string
	LName    string
}

// SignUp creates an active, unconfirmed user.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (model.User, error) {
	email := repository.NormalizeEmail(in.Email)
	invalid := map[string]string{}
	if err := utils.ValidateEmail(email); err != nil {
		invalid["email"] = err.Error()
	}
	if err := s.cfg.Policy.Validate(in.Password); err != nil {
		invalid["password"] = err.Error()
	}
	if err := utils.ValidateName("fname", in.FName); err != nil {
		invalid["fname"] = err.Error()
	}
	if err := utils.ValidateName("lname", in.LName); err != nil {
		invalid["lname"] = err.Error()
	}
	if len(invalid) > 0 {
		e := validation("invalid sign-up data")
		e.Data = map[string]any{"invalid": invalid}
		return model.User{}, e
	}

	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return model.User{}, internal(err, "could not look up user")
	}
	if exists {
		return model.User{}, newError(KindConflict, nil, "user %s already exists", email)
	}

	u := model.User{
		Email:          email,
		FName:          utils.NormalizeName(in.FName),
		LName:          utils.NormalizeName(in.LName),
		Status:         model.UserStatusActive,
		EmailConfirmed: false,
	}
	if err := utils.SetPassword(&u, in.Password, s.cfg.BcryptCost); err != nil {
		return model.User{}, internal(err, "could not create user")
	}
	if _, err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, newError(KindConflict, err, "user %s already exists", email)
		}
		return model.User{}, storage(err)
	}
	log.Infof("auth: user %d signed up", u.ID)
	return u, nil
}

// LoginResult carries the session token and the caller's profile.
type LoginResult struct {
	AccessToken string        `json:"access_token"`
	User        model.Profile `json:"user"`
}

const badCredentials = "invalid email or password"

// Login checks, in order: the account exists and has a password, the
// password matches, the account is active, the email is confirmed.  The
// first three failures share one message.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = repository.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return LoginResult{}, validation("invalid email format")
	}
	if password == "" {
		return LoginResult{}, validation("password is required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, unauthorized(nil, badCredentials)
	}
	if err != nil {
		return LoginResult{}, internal(err, "could not look up user")
	}
	if !u.HasPassword() || !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, unauthorized(nil, badCredentials)
	}
	if !u.IsActive() {
		return LoginResult{}, newError(KindForbidden, nil, "user is not active")
	}
	if !u.EmailConfirmed {
		if s.cfg.ResendConfirmOnLogin {
			if err := s.sendConfirmationLink(ctx, u); err != nil {
				log.Warnf("auth: resending confirmation link to user %d: %v", u.ID, err)
			}
		}
		return LoginResult{}, unauthorized(nil, "user's email not confirmed")
	}

	issued, err := s.issueAndRecord(ctx, u.Email, model.TokenAccess, s.cfg.AccessTTL, map[string]any{token.ClaimAccess: true})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: issued.Token, User: u.Profile()}, nil
}

// issueAndRecord mints a token and records it before returning it.
func (s *AuthService) issueAndRecord(ctx context.Context, identity string, typ model.TokenType, ttl time.Duration, claims map[string]any) (token.Issued, error) {
	issued, err := s.issuer.Issue(identity, typ, ttl, claims)
	if err != nil {
		return token.Issued{}, internal(err, "could not issue token")
	}
	if err := s.ledger.Record(ctx, issued); err != nil {
		return token.Issued{}, internal(err, "could not issue token")
	}
	return issued, nil
}

// Authenticate decodes raw, checks the ledger and requires the token type.
// Every failure is Unauthorized; the reason is only logged.
func (s *AuthService) Authenticate(ctx context.Context, raw string, want model.TokenType) (*token.Decoded, error) {
	d, err := s.issuer.Decode(raw)
	if err != nil {
		log.Debugf("auth: rejected token: %v", err)
		return nil, unauthorized(err, "invalid or expired token")
	}
	if d.Type != want {
		log.Debugf("auth: rejected %s token where %s was required", d.Type, want)
		return nil, unauthorized(nil, "invalid or expired token")
	}
	if !s.ledger.IsValid(ctx, d.JTI) {
		return nil, unauthorized(nil, "token has been revoked")
	}
	return d, nil
}

// Logout revokes the presented session.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	if err := s.ledger.Revoke(ctx, jti); err != nil {
		return internal(err, "could not end session")
	}
	return nil
}

// LogoutAll revokes every token held by identity.
func (s *AuthService) LogoutAll(ctx context.Context, identity string) (int64, error) {
	n, err := s.ledger.RevokeAllForIdentity(ctx, identity)
	if err != nil {
		return 0, internal(err, "could not end sessions")
	}
	return n, nil
}

// EmailExists answers NotFound for unregistered addresses.
func (s *AuthService) EmailExists(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return validation("invalid email format")
	}
	ok, err := s.users.Exists(ctx, email)
	if err != nil {
		return internal(err, "could not look up user")
	}
	if !ok {
		return newError(KindNotFound, nil, "email %s not found", email)
	}
	return nil
}

// VerificationResult is returned when a code has been mailed.
type VerificationResult struct {
	Token string
	User  model.Profile
}

// RequestVerificationCode mails a six-digit code and returns the token that
// must accompany it.  The token carries only a keyed digest of the code.
func (s *AuthService) RequestVerificationCode(ctx context.Context, email string) (VerificationResult, error) {
	email = repository.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return VerificationResult{}, validation("invalid email format")
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return VerificationResult{}, err
	}

	code, err := utils.NewVerificationCode()
	if err != nil {
		return VerificationResult{}, internal(err, "could not generate code")
	}
	issued, err := s.issueAndRecord(ctx, u.Email, model.TokenVerification, s.cfg.VerificationTTL, map[string]any{
		token.ClaimVerification: true,
		token.ClaimCodeDigest:   utils.CodeDigest(s.codeKey, u.Email, code),
	})
	if err != nil {
		return VerificationResult{}, err
	}

	msg, err := s.templates.Render(mail.TemplateVerificationCode, recipient(u), map[string]any{
		"Name":      u.FName,
		"Code":      code,
		"ExpiresIn": s.cfg.VerificationTTL.String(),
	})
	if err != nil {
		return VerificationResult{}, internal(err, "could not prepare email")
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if rerr := s.ledger.Revoke(ctx, issued.JTI); rerr != nil {
			log.Warnf("auth: revoking unsent verification token: %v", rerr)
		}
		return VerificationResult{}, newError(KindDependency, err, "verification email could not be sent")
	}
	return VerificationResult{Token: issued.Token, User: u.Profile()}, nil
}

// CheckVerificationCode consumes a verification token whose code matches and
// returns a short-lived verified token.  Consuming and recording share one
// transaction; a wrong code or a failed exchange changes nothing.
func (s *AuthService) CheckVerificationCode(ctx context.Context, claims *token.Decoded, code string) (string, error) {
	if claims == nil || claims.Type != model.TokenVerification || !claims.Flag(token.ClaimVerification) {
		return "", unauthorized(nil, "verification token required")
	}
	code = strings.TrimSpace(code)
	if !codeRe.MatchString(code) {
		return "", validation("verification code must be 6 digits")
	}
	if !s.ledger.IsValid(ctx, claims.JTI) {
		return "", unauthorized(nil, "token has been revoked")
	}
	if !utils.CodeMatches(s.codeKey, claims.Subject, code, claims.StringClaim(token.ClaimCodeDigest)) {
		return "", validation("invalid verification code")
	}

	var issued token.Issued
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		l := s.ledger.WithTx(tx)
		won, err := l.Consume(ctx, claims.JTI)
		if err != nil {
			return err
		}
		if !won {
			return errConsumed
		}
		issued, err = s.issuer.Issue(claims.Subject, model.TokenVerified, s.cfg.VerifiedTTL, map[string]any{
			token.ClaimVerified: true,
		})
		if err != nil {
			return err
		}
		return l.Record(ctx, issued)
	})
	if errors.Is(err, errConsumed) {
		return "", unauthorized(nil, "token has been revoked")
	}
	if err != nil {
		return "", internal(err, "could not verify code")
	}
	return issued.Token, nil
}

func requireVerified(claims *token.Decoded) error {
	if claims == nil || claims.Type != model.TokenVerified || !claims.Flag(token.ClaimVerified) {
		return unauthorized(nil, "verified token required")
	}
	return nil
}

// ConfirmEmail marks the verified identity's email confirmed and consumes
// the verified token, atomically.
func (s *AuthService) ConfirmEmail(ctx context.Context, claims *token.Decoded) error {
	if err := requireVerified(claims); err != nil {
		return err
	}
	return s.consumeVerified(ctx, claims, func(ctx context.Context, users *repository.UserRepo, _ *ledger.Ledger) error {
		return users.ConfirmEmail(ctx, claims.Subject)
	})
}

// ResetPassword stores a new password for the verified identity, consumes
// the verified token and revokes every other session, atomically.
func (s *AuthService) ResetPassword(ctx context.Context, claims *token.Decoded, newPassword string) error {
	if err := requireVerified(claims); err != nil {
		return err
	}
	if err := s.cfg.Policy.Validate(newPassword); err != nil {
		return validation("%s", err.Error())
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return internal(err, "could not update password")
	}
	return s.consumeVerified(ctx, claims, func(ctx context.Context, users *repository.UserRepo, l *ledger.Ledger) error {
		if err := users.UpdatePassword(ctx, claims.Subject, hash); err != nil {
			return err
		}
		n, err := l.RevokeAllForIdentity(ctx, claims.Subject)
		if err != nil {
			return err
		}
		log.Infof("auth: password reset revoked %d sessions", n)
		return nil
	})
}

// consumeVerified runs mutate and the revocation of the verified token in one
// transaction.  A token already consumed aborts with Unauthorized.
func (s *AuthService) consumeVerified(ctx context.Context, claims *token.Decoded,
	mutate func(context.Context, *repository.UserRepo, *ledger.Ledger) error) error {
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := s.users.WithTx(tx)
		l := s.ledger.WithTx(tx)
		won, err := l.Consume(ctx, claims.JTI)
		if err != nil {
			return err
		}
		if !won {
			return errConsumed
		}
		return mutate(ctx, users, l)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errConsumed):
		return unauthorized(nil, "token has been revoked")
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindNotFound, err, "user not found")
	default:
		return storage(err)
	}
}

// RequestConfirmationLink mails a signed confirmation link.
func (s *AuthService) RequestConfirmationLink(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return validation("invalid email format")
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if u.EmailConfirmed {
		return newError(KindConflict, nil, "email %s is already confirmed", email)
	}
	if err := s.sendConfirmationLink(ctx, u); err != nil {
		return newError(KindDependency, err, "confirmation email could not be sent")
	}
	return nil
}

func (s *AuthService) sendConfirmationLink(ctx context.Context, u model.User) error {
	tok, err := s.codec.Sign(u.Email, NamespaceEmailConfirmation)
	if err != nil {
		return err
	}
	msg, err := s.templates.Render(mail.TemplateConfirmationLink, recipient(u), map[string]any{
		"Name":      u.FName,
		"Link":      s.cfg.PublicURL + "/v1/auth/confirm-email/" + tok,
		"ExpiresIn": s.cfg.LinkTTL.String(),
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

// ConfirmEmailLink verifies a signed link and confirms the address.
func (s *AuthService) ConfirmEmailLink(ctx context.Context, tok string) error {
	res := s.codec.Verify(tok, NamespaceEmailConfirmation, "", s.cfg.LinkTTL)
	if !res.Valid {
		log.Infof("auth: confirmation link rejected: %s", res.Reason)
		return unauthorized(nil, "invalid or expired link")
	}
	if err := s.users.ConfirmEmail(ctx, res.Identity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, err, "user not found")
		}
		return storage(err)
	}
	return nil
}

// Prune deletes ledger rows for expired tokens.
func (s *AuthService) Prune(ctx context.Context) (int64, error) {
	return s.ledger.Prune(ctx, s.issuer.Now())
}

func (s *AuthService) lookup(ctx context.Context, email string) (model.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, newError(KindNotFound, err, "user %s not found", email)
	}
	if err != nil {
		return model.User{}, internal(err, "could not look up user")
	}
	return u, nil
}

func recipient(u model.User) mail.Recipient {
	return mail.Recipient{Name: strings.TrimSpace(u.FName + " " + u.LName), Email: u.Email}
}
