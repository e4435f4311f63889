// Package history provides persistent storage for completed risk analyses.
// Stored records back the retrieval endpoints and longitudinal comparison of
// a patient's assessments over time.
package history

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cardio-risk-server/internal/domain"
)

// Record is one persisted analysis. The headline columns are denormalized
// from the payload so listings and lookups never have to decode the full
// analysis JSON.
type Record struct {
	ID           string          `json:"id"`
	DocumentHash string          `json:"document_hash,omitempty"`
	RiskPercent  float64         `json:"risk_percent"`
	Category     string          `json:"category"`
	Confidence   float64         `json:"confidence"`
	Priority     string          `json:"priority"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewRecord builds a Record from a finished analysis and the hash of the
// source document (empty when the analysis came from structured input).
func NewRecord(analysis *domain.Analysis, documentHash string) (*Record, error) {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:           analysis.ID,
		DocumentHash: documentHash,
		RiskPercent:  analysis.RiskPercent,
		Category:     string(analysis.Category),
		Confidence:   analysis.Confidence,
		Priority:     string(analysis.Triage.Priority),
		Payload:      payload,
		CreatedAt:    analysis.AnalyzedAt,
	}, nil
}

// Analysis decodes the stored payload back into the full analysis.
func (r *Record) Analysis() (*domain.Analysis, error) {
	analysis := &domain.Analysis{}
	if err := json.Unmarshal(r.Payload, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// Store defines the interface for analysis history storage.
type Store interface {
	// Save stores an analysis record. Saving an existing ID replaces the
	// stored record.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a record by analysis ID. Returns nil without error when
	// no record exists.
	Get(ctx context.Context, id string) (*Record, error)

	// FindByDocumentHash returns the most recent record for a document hash,
	// or nil when none exists.
	FindByDocumentHash(ctx context.Context, hash string) (*Record, error)

	// List returns records ordered newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by analysis ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports records from a JSON reader, skipping IDs that
	// already exist. Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// HistoryExport represents the JSON export format.
type HistoryExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}
