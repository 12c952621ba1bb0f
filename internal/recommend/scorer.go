// Package recommend scores, diversifies and serves the personalized feed.
package recommend

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/currents/internal/feature"
)

const rankerArtifactSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["weights", "bias"],
	"properties": {
		"weights": {
			"type": "array",
			"items": {"type": "number"},
			"minItems": 1
		},
		"bias": {"type": "number"}
	}
}`

const rankerMetaSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["model_type", "features"],
	"properties": {
		"model_type": {"type": "string"},
		"features": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1
		},
		"version": {"type": "string"}
	}
}`

var (
	artifactSchema = jsonschema.MustCompileString("ranker.json", rankerArtifactSchema)
	metaSchema     = jsonschema.MustCompileString("ranker_meta.json", rankerMetaSchema)
)

type scorerArtifact struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

type scorerMeta struct {
	ModelType string   `json:"model_type"`
	Features  []string `json:"features"`
	Version   string   `json:"version"`
}

// Scorer is an immutable loaded ranking model.
type Scorer struct {
	weights []float64
	bias    float64
	version string
}

// Probability returns the positive-class probability for one feature vector.
func (s *Scorer) Probability(features []float64) float64 {
	z := s.bias
	for i := range s.weights {
		if i < len(features) {
			z += s.weights[i] * features[i]
		}
	}
	return 1 / (1 + math.Exp(-z))
}

// Version reports the artifact version string, empty when unset.
func (s *Scorer) Version() string { return s.version }

// ScorerContext holds the currently loaded scorer. It is constructed
// explicitly and injected; Reload is the only way the handle changes.
// Readers get either a usable scorer or nil, never a half-loaded one.
type ScorerContext struct {
	modelPath string
	metaPath  string
	logger    zerolog.Logger

	mu     sync.RWMutex
	scorer *Scorer
	warned bool
}

func NewScorerContext(modelPath, metaPath string, logger zerolog.Logger) *ScorerContext {
	return &ScorerContext{
		modelPath: modelPath,
		metaPath:  metaPath,
		logger:    logger,
	}
}

// Current returns the loaded scorer or nil when none is usable. The first
// miss logs a warning; later misses stay quiet so feed serving does not spam.
func (c *ScorerContext) Current() *Scorer {
	c.mu.RLock()
	scorer := c.scorer
	warned := c.warned
	c.mu.RUnlock()

	if scorer == nil && !warned {
		c.mu.Lock()
		if !c.warned {
			c.warned = true
			c.logger.Warn().
				Str("model_path", c.modelPath).
				Msg("no compatible ranker loaded, feed scoring falls back to heuristic")
		}
		c.mu.Unlock()
	}
	return scorer
}

// Reload reads and validates the artifact pair from disk. On any failure the
// previous scorer is dropped so scoring falls back to the heuristic rather
// than serving a stale or mismatched model.
func (c *ScorerContext) Reload() error {
	scorer, err := loadScorer(c.modelPath, c.metaPath)

	c.mu.Lock()
	c.scorer = scorer
	c.warned = false
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.logger.Info().
		Str("model_path", c.modelPath).
		Str("version", scorer.Version()).
		Msg("ranker loaded")
	return nil
}

func loadScorer(modelPath, metaPath string) (*Scorer, error) {
	artifactRaw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read ranker artifact: %w", err)
	}
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read ranker meta: %w", err)
	}

	if err := validateJSON(artifactSchema, artifactRaw); err != nil {
		return nil, fmt.Errorf("ranker artifact invalid: %w", err)
	}
	if err := validateJSON(metaSchema, metaRaw); err != nil {
		return nil, fmt.Errorf("ranker meta invalid: %w", err)
	}

	var artifact scorerArtifact
	if err := json.Unmarshal(artifactRaw, &artifact); err != nil {
		return nil, fmt.Errorf("decode ranker artifact: %w", err)
	}
	var meta scorerMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("decode ranker meta: %w", err)
	}

	if !slices.Equal(meta.Features, feature.Names) {
		return nil, fmt.Errorf("ranker feature schema mismatch: model has %v, builder produces %v", meta.Features, feature.Names)
	}
	if len(artifact.Weights) != len(feature.Names) {
		return nil, fmt.Errorf("ranker has %d weights for %d features", len(artifact.Weights), len(feature.Names))
	}

	return &Scorer{
		weights: artifact.Weights,
		bias:    artifact.Bias,
		version: meta.Version,
	}, nil
}

func validateJSON(schema *jsonschema.Schema, raw []byte) error {
	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return err
	}
	return schema.Validate(document)
}
