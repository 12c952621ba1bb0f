package pipeline

import (
	"context"
	"fmt"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/textutil"
	"horse.fit/currents/internal/vec"
)

type EmbedResult struct {
	Processed int `json:"processed"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"failed"`
}

type pendingDigest struct {
	DigestID int64
	Text     string
}

// EmbedDigests vectorizes digests that have no stored embedding yet, making
// them retrievable by the feed's nearest-neighbor search.
func (s *Service) EmbedDigests(ctx context.Context) (EmbedResult, error) {
	stats, err := s.withStage(ctx, "embed-digests", func(tx db.Tx) (any, error) {
		return s.embedDigestsTx(ctx, tx)
	})
	if err != nil {
		return EmbedResult{}, err
	}
	return stats.(EmbedResult), nil
}

func (s *Service) embedDigestsTx(ctx context.Context, tx db.Tx) (EmbedResult, error) {
	const selectQ = `
SELECT d.digest_id, d.digest_text
FROM news.digests d
WHERE d.status = 'ok'
  AND NOT EXISTS (SELECT 1 FROM news.digest_embeddings de WHERE de.digest_id = d.digest_id)
ORDER BY d.digest_id ASC
`
	rows, err := tx.Query(ctx, selectQ)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("select pending digests: %w", err)
	}

	pending := make([]pendingDigest, 0, 128)
	for rows.Next() {
		var d pendingDigest
		if err := rows.Scan(&d.DigestID, &d.Text); err != nil {
			rows.Close()
			return EmbedResult{}, fmt.Errorf("scan pending digest: %w", err)
		}
		pending = append(pending, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return EmbedResult{}, fmt.Errorf("iterate pending digests: %w", err)
	}
	rows.Close()

	var result EmbedResult
	now := globaltime.Now()
	for start := 0; start < len(pending); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, 0, len(batch))
		for _, d := range batch {
			texts = append(texts, d.Text)
		}

		vectors, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			result.Processed += len(batch)
			result.Failed += len(batch)
			s.logger.Warn().Err(err).Int("batch", len(batch)).Msg("digest embedding batch failed")
			continue
		}

		for i, digest := range batch {
			result.Processed++

			literal, err := vec.Literal(vec.Normalize(vectors[i]))
			if err != nil {
				result.Failed++
				return result, fmt.Errorf("digest_id=%d invalid embedding: %w", digest.DigestID, err)
			}

			const insertQ = `
INSERT INTO news.digest_embeddings (digest_id, model_name, model_version, dim, embedding, content_hash, embedded_at)
VALUES ($1, $2, $3, $4, $5::vector, $6, $7)
ON CONFLICT (digest_id) DO UPDATE SET
	model_name = EXCLUDED.model_name,
	model_version = EXCLUDED.model_version,
	dim = EXCLUDED.dim,
	embedding = EXCLUDED.embedding,
	content_hash = EXCLUDED.content_hash,
	embedded_at = EXCLUDED.embedded_at
`
			if _, err := tx.Exec(ctx, insertQ,
				digest.DigestID,
				s.embedder.ModelName(),
				s.embedder.ModelVersion(),
				s.embedder.Dim(),
				literal,
				textutil.ContentHash(digest.Text),
				now,
			); err != nil {
				return result, fmt.Errorf("insert digest embedding digest_id=%d: %w", digest.DigestID, err)
			}
			result.Embedded++
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("embedded", result.Embedded).
		Int("failed", result.Failed).
		Msg("digest embedding stage finished")
	return result, nil
}
