package textextract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-risk-server/internal/domain"
)

func newTestClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(domain.TextExtractConfig{
		Enabled: true,
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, logger)
}

func TestClient_ExtractText(t *testing.T) {
	var gotRequest extractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		json.NewEncoder(w).Encode(extractResponse{Text: "Patient: 58 year old male. BP 152/94."})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.ExtractText(context.Background(), []byte("%PDF-1.4 fake"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Patient: 58 year old male. BP 152/94.", text)
	assert.Equal(t, []byte("%PDF-1.4 fake"), gotRequest.Content)
	assert.Equal(t, "application/pdf", gotRequest.MimeType)
}

func TestClient_ExtractText_EmptyContent(t *testing.T) {
	client := newTestClient("http://localhost:0")

	_, err := client.ExtractText(context.Background(), nil, "")

	var analysisErr *domain.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, domain.ErrTextExtraction, analysisErr.Code)
}

func TestClient_ExtractText_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Error: "unsupported document format"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ExtractText(context.Background(), []byte("data"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document format")
}

func TestClient_ExtractText_EmptyTextRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Text: "   \n  "})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ExtractText(context.Background(), []byte("data"), "")

	var analysisErr *domain.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, domain.ErrTextExtraction, analysisErr.Code)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.ExtractText(ctx, []byte("data"), "")
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.ExtractText(ctx, []byte("data"), "")
	var analysisErr *domain.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, domain.ErrTextExtraction, analysisErr.Code)
	assert.Contains(t, analysisErr.Details, "circuit breaker")
}
