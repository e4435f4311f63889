package textextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cardio-risk-server/internal/domain"
)

// Client talks to an external OCR/text-extraction service that converts
// scanned report documents into plain text. Calls run through a circuit
// breaker so a failing extraction backend does not stall analysis requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// extractRequest is the wire format accepted by the extraction service.
type extractRequest struct {
	Content  []byte `json:"content"`
	MimeType string `json:"mime_type,omitempty"`
}

// extractResponse is the wire format returned by the extraction service.
type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewClient builds an extraction client from config.
func NewClient(cfg domain.TextExtractConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TextExtract",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// ExtractText sends raw document bytes to the extraction service and
// returns the recovered plain text.
func (c *Client) ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	if len(content) == 0 {
		return "", domain.NewAnalysisError(domain.ErrTextExtraction, "document content is empty", "", "")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doExtract(ctx, content, mimeType)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", domain.NewAnalysisError(domain.ErrTextExtraction,
				"text extraction service unavailable", "circuit breaker open", "")
		}
		return "", fmt.Errorf("text extraction failed: %w", err)
	}

	text := result.(string)
	if strings.TrimSpace(text) == "" {
		return "", domain.NewAnalysisError(domain.ErrTextExtraction,
			"extraction service returned no text", "", "")
	}

	return text, nil
}

func (c *Client) doExtract(ctx context.Context, content []byte, mimeType string) (string, error) {
	payload, err := json.Marshal(extractRequest{Content: content, MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded extractResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("extraction service error: %s", decoded.Error)
	}

	return decoded.Text, nil
}

// BreakerState reports the current circuit breaker state for health checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
