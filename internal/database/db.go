package database

import (
	"context"
	"fmt"
	"net"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/maintenance-auth/internal/config"
)

// Supported driver names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// DSN builds the data source name for the configured driver.  DATABASE_URL
// wins when set.
func DSN(cfg config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	switch cfg.DBDriver {
	case Postgres:
		port := cfg.DBPort
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPass, net.JoinHostPort(cfg.DBHost, port), cfg.DBName)
	case SQLite:
		return "file:" + cfg.DBName + ".db?_foreign_keys=on"
	default:
		auth := cfg.DBUser
		if cfg.DBPass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.DBUser, cfg.DBPass)
		}
		port := cfg.DBPort
		if port == "" {
			port = "3306"
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, net.JoinHostPort(cfg.DBHost, port), cfg.DBName)
	}
}

// Open connects to the configured database and verifies the connection.
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	// Pool settings
	if driver == SQLite {
		// one writer; a second connection would see "database is locked"
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}
	return db, nil
}

// OpenMemory opens a private in-memory SQLite database with the schema
// applied.  The name isolates databases that live in the same process.
func OpenMemory(name string) (*sqlx.DB, error) {
	db, err := Open(SQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Builder returns a squirrel statement builder using the placeholder style of
// the connection's driver.  Both *sqlx.DB and *sqlx.Tx qualify.
func Builder(db interface{ DriverName() string }) sq.StatementBuilderType {
	if db.DriverName() == Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
