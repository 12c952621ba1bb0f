package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(endpoint string, dim int) *Client {
	return &Client{
		endpoint:     endpoint,
		modelName:    "test-model",
		modelVersion: "v1",
		dim:          dim,
		timeout:      2 * time.Second,
		httpClient:   http.DefaultClient,
	}
}

func TestEmbedManyBareProtocol(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Texts) != 2 {
			t.Errorf("expected 2 texts, got %d", len(req.Texts))
		}
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float64{{1, 0, 0}, {0, 1, 0}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	vectors, err := client.EmbedMany(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EmbedMany returned error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors returned out of order: %v", vectors)
	}
}

func TestEmbedManyOpenAIProtocolOrdersByIndex(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected input field to carry 2 texts, got %d", len(req.Input))
		}
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/v1/embeddings", 2)
	vectors, err := client.EmbedMany(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedMany returned error: %v", err)
	}
	if vectors[0][0] != 1 {
		t.Fatalf("expected index-sorted vectors, got %v", vectors)
	}
}

func TestEmbedManyRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.EmbedMany(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedManyRejectsCountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0, 0}}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.EmbedMany(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedManyEmptyInput(t *testing.T) {
	t.Parallel()

	client := newTestClient("http://127.0.0.1:1/embed", 3)
	vectors, err := client.EmbedMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty input, got %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors for empty input, got %v", vectors)
	}
}
