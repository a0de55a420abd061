// Package sqlstore is the relational Store: GORM over Postgres in
// production and SQLite for local runs and tests.
package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"postvote/app/models"
	"postvote/app/repositories"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements repositories.Store with GORM.
type Store struct {
	db *gorm.DB
}

var _ repositories.Store = (*Store)(nil)

// Open connects with the named driver ("postgres" or "sqlite") and migrates
// the schema.
func Open(driverName, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dialector gorm.Dialector
	switch driverName {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driverName)
	}
	log.Info("connecting to database", "driver", driverName)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// SQLite allows a single writer; one connection also keeps an
		// in-memory database alive and shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	return New(db)
}

// New wraps an open GORM handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Vote{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// View runs fn outside an explicit transaction; every statement sees
// committed data.
func (s *Store) View(ctx context.Context, fn func(repositories.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return repositories.Unavailable(err)
	}
	return translate(ctx, fn(bind(s.db.WithContext(ctx))))
}

// Atomic runs fn inside a database transaction, replaying it when a unique
// index rejected a concurrent insert.
func (s *Store) Atomic(ctx context.Context, fn func(repositories.Repos) error) error {
	return repositories.RetryOnConflict(ctx, repositories.MaxConflictRetries, func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(bind(tx))
		})
		return translate(ctx, err)
	})
}

// Reset deletes every row, children first.
func (s *Store) Reset() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&models.Vote{}, &models.Post{}, &models.User{}} {
			if err := tx.Delete(model).Error; err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func bind(tx *gorm.DB) repositories.Repos {
	return repositories.Repos{
		Posts: &postRepository{db: tx},
		Votes: &voteRepository{db: tx},
		Users: &userRepository{db: tx},
	}
}

// translate leaves store and domain errors alone and classifies the rest.
func translate(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound),
		errors.Is(err, repositories.ErrConflict),
		errors.Is(err, repositories.ErrUnavailable):
		return err
	case isDuplicate(err):
		return repositories.ErrConflict
	case ctx.Err() != nil, errors.Is(err, driver.ErrBadConn):
		return repositories.Unavailable(err)
	default:
		return err
	}
}

// dbErr classifies an error returned by a GORM statement.
func dbErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case isDuplicate(err):
		return repositories.ErrConflict
	default:
		return repositories.Unavailable(err)
	}
}

// isDuplicate recognises unique violations whether or not the dialector
// translated them.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
