// Package history persists finished research runs. The pipeline never
// reads its own history; this store only backs the query surface.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/types"
)

// Config selects the backing database file.
type Config struct {
	// Path is the sqlite database file; ":memory:" keeps everything
	// in-process.
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns a file-backed store in the working directory.
func DefaultConfig() Config {
	return Config{Path: "researchflow.db"}
}

// runRow is the persisted shape of one run.
type runRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	RunID          string `gorm:"uniqueIndex;size:128"`
	UserID         string `gorm:"index;size:128"`
	Topic          string `gorm:"size:512"`
	Status         string `gorm:"size:32"`
	TotalNodes     int
	CompletedNodes int
	StartedAt      time.Time
	CompletedAt    time.Time
	CreatedAt      time.Time
}

func (runRow) TableName() string { return "research_runs" }

// Store is a gorm-backed implementation of research.HistoryStore.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ research.HistoryStore = (*Store)(nil)

// Open opens (and migrates) the store.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", cfg.Path, err)
	}
	if err := db.AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	logger.Info("history store opened", zap.String("path", cfg.Path))
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history_store")),
	}, nil
}

// SaveRun upserts one finished run keyed by its run ID.
func (s *Store) SaveRun(ctx context.Context, rec research.RunRecord) error {
	// Column map rather than a struct so zero values still overwrite.
	values := map[string]any{
		"run_id":          rec.RunID,
		"user_id":         rec.UserID,
		"topic":           rec.Topic,
		"status":          string(rec.Status),
		"total_nodes":     rec.TotalNodes,
		"completed_nodes": rec.CompletedNodes,
		"started_at":      rec.StartedAt,
		"completed_at":    rec.CompletedAt,
	}

	err := s.db.WithContext(ctx).
		Model(&runRow{}).
		Where("run_id = ?", rec.RunID).
		Assign(values).
		FirstOrCreate(&runRow{}).Error
	if err != nil {
		return fmt.Errorf("history: save run %s: %w", rec.RunID, err)
	}
	return nil
}

// ListRuns returns a user's runs, newest first. An empty userID lists
// every run.
func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]research.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.db.WithContext(ctx).Model(&runRow{}).Order("started_at DESC").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}

	out := make([]research.RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, research.RunRecord{
			RunID:          row.RunID,
			UserID:         row.UserID,
			Topic:          row.Topic,
			Status:         types.NodeStatus(row.Status),
			TotalNodes:     row.TotalNodes,
			CompletedNodes: row.CompletedNodes,
			StartedAt:      row.StartedAt,
			CompletedAt:    row.CompletedAt,
		})
	}
	return out, nil
}

// Ping checks the underlying connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
