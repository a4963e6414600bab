package biometric

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainerrors "rollcall/pkg/domain-errors"
)

// EmbeddingDim is the dimensionality every extractor must produce.
const EmbeddingDim = 512

// Extractor turns a captured frame into a face embedding. The model behind it
// is a black box; implementations only promise a fixed-dimension vector or an
// error when no face can be measured.
type Extractor interface {
	Extract(ctx context.Context, frame []byte) ([]float32, error)
}

// HTTPExtractor calls an external embedding service.
type HTTPExtractor struct {
	url    string
	client *http.Client
}

// NewHTTPExtractor builds an extractor against the given service URL.
func NewHTTPExtractor(url string) *HTTPExtractor {
	return &HTTPExtractor{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type extractRequest struct {
	Image string `json:"image"`
}

type extractResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Extract posts the frame and decodes the returned vector.
func (e *HTTPExtractor) Extract(ctx context.Context, frame []byte) ([]float32, error) {
	body, err := json.Marshal(extractRequest{Image: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode extraction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "build extraction request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "call embedding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.Newf(domainerrors.CodeUnavailable, "embedding service returned %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "decode extraction response")
	}
	if len(out.Embedding) != EmbeddingDim {
		return nil, fmt.Errorf("embedding service returned %d dimensions, want %d", len(out.Embedding), EmbeddingDim)
	}
	return out.Embedding, nil
}
