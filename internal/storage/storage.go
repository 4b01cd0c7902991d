// Package storage persists postings, runs and search profiles.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spigell/job-radar/internal/jobs"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence contract the pipeline relies on. InsertPosting
// is insert-if-absent keyed by the posting hash: an existing hash yields
// (false, nil), not an error.
type Store interface {
	InsertPosting(ctx context.Context, p *jobs.Posting) (bool, error)
	PostingByHash(ctx context.Context, hash string) (*jobs.Posting, error)
	ListPostings(ctx context.Context, q Query) (*Page, error)

	CreateRun(ctx context.Context, run *jobs.Run) error
	FinishRun(ctx context.Context, run *jobs.Run) error
	Runs(ctx context.Context, limit int) ([]*jobs.Run, error)
	AddLog(ctx context.Context, l *jobs.Log) error
	RunLogs(ctx context.Context, runID string) ([]*jobs.Log, error)

	SaveProfile(ctx context.Context, p *jobs.SearchProfile) error
	ActiveProfiles(ctx context.Context) ([]*jobs.SearchProfile, error)

	Close() error
}

const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

type Config struct {
	Type string `mapstructure:"type"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
	// DSN is the PostgreSQL connection string, resolved through secrets.
	DSN string `mapstructure:"-" json:"-"`
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeMemory:
		return NewMemory(), nil
	case TypeSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite storage requires a path")
		}
		return NewSQLite(cfg.Path)
	case TypePostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres storage requires a dsn")
		}
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

func validatePosting(p *jobs.Posting) error {
	if p == nil {
		return errors.New("posting is nil")
	}
	if p.Hash == "" {
		return errors.New("posting has no hash")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
