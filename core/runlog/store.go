// Package runlog keeps an audit trail of scheduling runs. Each run is stored
// as one RunRecord in a JSONL file, a rotating JSONL file or SQLite.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/taskplan/core/model"
)

// RunRecord captures one scheduling run and its outcome.
type RunRecord struct {
	ID           string                `json:"id"`
	Timestamp    time.Time             `json:"timestamp"`
	Source       string                `json:"source"`
	Horizon      int                   `json:"horizon"`
	TaskCount    int                   `json:"task_count"`
	Scheduled    []model.ScheduledTask `json:"scheduled"`
	Rejected     []model.RejectedTask  `json:"rejected"`
	TotalBenefit float64               `json:"total_benefit"`
}

// NewRecord builds a record from a merged result.
func NewRecord(id, source string, ts time.Time, taskCount int, res model.Result) RunRecord {
	return RunRecord{
		ID:           id,
		Timestamp:    ts,
		Source:       source,
		Horizon:      res.Horizon,
		TaskCount:    taskCount,
		Scheduled:    res.Scheduled,
		Rejected:     res.Rejected,
		TotalBenefit: res.TotalBenefit,
	}
}

// HasTask reports whether a task with the given name took part in the run.
func (r RunRecord) HasTask(name string) bool {
	for _, s := range r.Scheduled {
		if s.Name == name {
			return true
		}
	}
	for _, s := range r.Rejected {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Source   string
	TaskName string
	Limit    int
}

// Match applies every filter except Limit.
func (q Query) Match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != "" && r.Source != q.Source {
		return false
	}
	if q.TaskName != "" && !r.HasTask(q.TaskName) {
		return false
	}
	return true
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q Query) ([]RunRecord, error)
	Close() error
}

// Config defines settings for run log storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB enables rotation of the JSONL file when positive.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "runs.jsonl"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// NewStore opens the store selected by cfg. The "none" backend discards records.
func NewStore(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "none":
		return NopStore{}, nil
	}
	if cfg.MaxSizeMB > 0 {
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
	return NewJSONLStore(cfg.Path)
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, RunRecord) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]RunRecord, error) { return nil, nil }
func (NopStore) Close() error                                      { return nil }

func limit(recs []RunRecord, n int) []RunRecord {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
