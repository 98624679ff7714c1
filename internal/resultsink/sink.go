// Package resultsink exports finished runs to an external store.
package resultsink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/runner"
)

// Sink receives one Record per finished run.
type Sink interface {
	Record(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Record is the exported summary of one run.
type Record struct {
	ID              string                   `bson:"_id"`
	ConfigPath      string                   `bson:"config_path"`
	DatasetID       string                   `bson:"dataset_id"`
	ModelType       string                   `bson:"model_type"`
	Family          string                   `bson:"family"`
	Hyperparameters map[string]config.Params `bson:"hyperparameters"`
	Results         map[string]any           `bson:"results"`
	Instances       int                      `bson:"instances"`
	Features        int                      `bson:"features"`
	CreatedAt       time.Time                `bson:"created_at"`
}

// NewRecord summarises an outcome under a fresh random id.
func NewRecord(out *runner.Outcome, now time.Time) Record {
	cfg := out.Config
	return Record{
		ID:              uuid.NewString(),
		ConfigPath:      out.ConfigPath,
		DatasetID:       cfg.Dataset.ID,
		ModelType:       cfg.Model.Type,
		Family:          out.Family.String(),
		Hyperparameters: cfg.Model.Hyperparameters,
		Results:         cfg.Results,
		Instances:       cfg.Dataset.Instances,
		Features:        cfg.Dataset.Features,
		CreatedAt:       now.UTC(),
	}
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }
func (Nop) Close(context.Context) error          { return nil }

// Memory keeps records in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func (m *Memory) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
