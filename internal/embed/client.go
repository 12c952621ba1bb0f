// Package embed talks to the external text embedding service and exposes a
// small client interface the pipeline and feed layers share.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"horse.fit/currents/internal/config"
)

// Embedder produces fixed-dimension vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float64, error)
	ModelName() string
	ModelVersion() string
	Dim() int
}

// Client calls an HTTP embedding service. It accepts both the bare
// {"texts": [...]} protocol and the OpenAI-style /v1/embeddings protocol,
// picking by endpoint path.
type Client struct {
	endpoint     string
	modelName    string
	modelVersion string
	dim          int
	timeout      time.Duration
	httpClient   *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts,omitempty"`
	Input []string `json:"input,omitempty"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewClient builds a Client from the embedding settings of the configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint:     cfg.EmbeddingEndpoint,
		modelName:    cfg.EmbeddingModelName,
		modelVersion: cfg.EmbeddingModelVersion,
		dim:          cfg.EmbeddingDim,
		timeout:      cfg.EmbeddingTimeout,
		httpClient:   http.DefaultClient,
	}
}

func (c *Client) ModelName() string    { return c.modelName }
func (c *Client) ModelVersion() string { return c.modelVersion }
func (c *Client) Dim() int             { return c.dim }

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany returns one vector per input text, in input order. Every vector
// is checked against the configured dimension.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := embedRequest{Texts: texts}
	if parsed, err := url.Parse(c.endpoint); err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings") {
		payload = embedRequest{Input: texts, Model: c.modelName}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(texts), len(vectors))
	}
	for i, vector := range vectors {
		if len(vector) != c.dim {
			return nil, fmt.Errorf("embedding %d has dim=%d, expected %d", i, len(vector), c.dim)
		}
	}
	return vectors, nil
}
