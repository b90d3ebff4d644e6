// Package archive persists finished games to Postgres.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Archiver stores finished games and lists recent ones.
type Archiver interface {
	SaveGame(ctx context.Context, s domain.Session) error
	RecentGames(ctx context.Context, limit int) ([]GameRecord, error)
}

// Store is the gorm-backed Archiver.
type Store struct {
	db *gorm.DB
}

// gormWriter routes gorm's own logging into zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Msgf(format, args...)
}

// Open connects to dsn and migrates the schema.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	gormLogger := logger.New(
		gormWriter{log: log.With().Str("component", "gorm").Logger()},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&GameRecord{}, &RoundRow{}, &ScoreRow{}); err != nil {
		return fmt.Errorf("migrate archive schema: %w", err)
	}
	return nil
}

// SaveGame writes a finished game. Saving the same session twice is a no-op.
func (s *Store) SaveGame(ctx context.Context, sess domain.Session) error {
	if sess.Status != domain.StatusFinished {
		return domain.NewError(domain.CodeInvalidState, "only finished games are archived")
	}
	rec := FromSession(sess)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&GameRecord{}).Where("session_id = ?", rec.SessionID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("archive game %s: %w", sess.RoomCode, err)
	}
	return nil
}

// RecentGames returns the latest finished games with rounds and scores.
func (s *Store) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var games []GameRecord
	err := s.db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_number") }).
		Preload("Scores", func(db *gorm.DB) *gorm.DB { return db.Order("score DESC") }).
		Order("finished_at DESC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list recent games: %w", err)
	}
	return games, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Nop is used when no database is configured.
type Nop struct{}

func (Nop) SaveGame(context.Context, domain.Session) error { return nil }

func (Nop) RecentGames(context.Context, int) ([]GameRecord, error) { return []GameRecord{}, nil }
