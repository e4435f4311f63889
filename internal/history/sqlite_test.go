package history

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-risk-server/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id, hash string, riskPercent float64) *Record {
	payload, _ := json.Marshal(map[string]interface{}{"id": id, "risk_percent": riskPercent})
	return &Record{
		ID:           id,
		DocumentHash: hash,
		RiskPercent:  riskPercent,
		Category:     "MODERATE",
		Confidence:   0.72,
		Priority:     "SEMI_URGENT",
		Payload:      payload,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	record := testRecord("a1", "hash-1", 55.5)
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.DocumentHash, got.DocumentHash)
	assert.Equal(t, record.RiskPercent, got.RiskPercent)
	assert.Equal(t, record.Category, got.Category)
	assert.Equal(t, record.Priority, got.Priority)
	assert.JSONEq(t, string(record.Payload), string(got.Payload))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	got, err := store.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveReplacesExistingID(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("a1", "hash-1", 40)))

	updated := testRecord("a1", "hash-1", 62)
	updated.Category = "HIGH"
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 62.0, got.RiskPercent)
	assert.Equal(t, "HIGH", got.Category)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_FindByDocumentHash(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	older := testRecord("a1", "hash-1", 40)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testRecord("a2", "hash-1", 45)
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	got, err := store.FindByDocumentHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a2", got.ID, "newest record wins")

	missing, err := store.FindByDocumentHash(ctx, "hash-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := store.FindByDocumentHash(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		r := testRecord(string(rune('a'+i)), "", float64(10*i))
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(ctx, r))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].ID, "newest first")

	rest, err := store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("a1", "", 40)))
	require.NoError(t, store.Delete(ctx, "a1"))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	source := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, source.Save(ctx, testRecord("a1", "hash-1", 40)))
	require.NoError(t, source.Save(ctx, testRecord("a2", "hash-2", 60)))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	var export HistoryExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, 2, export.Count)

	target := newTestSQLiteStore(t)
	require.NoError(t, target.Save(ctx, testRecord("a1", "hash-1", 40)))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported, "only the unseen record imports")
	assert.Equal(t, 1, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRecord_AnalysisRoundTrip(t *testing.T) {
	analysis := &domain.Analysis{
		ID:          "a1",
		RiskPercent: 83.6,
		Category:    domain.HIGH,
		Confidence:  0.9,
		AnalyzedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Version:     domain.AnalysisVersion,
	}
	analysis.Triage.Priority = domain.IMMEDIATE

	record, err := NewRecord(analysis, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", record.ID)
	assert.Equal(t, 83.6, record.RiskPercent)
	assert.Equal(t, "HIGH", record.Category)
	assert.Equal(t, "IMMEDIATE", record.Priority)
	assert.Equal(t, analysis.AnalyzedAt, record.CreatedAt)

	decoded, err := record.Analysis()
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskPercent, decoded.RiskPercent)
	assert.Equal(t, analysis.Category, decoded.Category)
}
