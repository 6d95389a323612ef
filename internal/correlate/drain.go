package correlate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"capflow/internal/capture"
)

// Drain feeds every transaction from source into engine until the source is
// exhausted. The context is checked between transactions only. It returns the
// number of transactions ingested; a read error stops the drain and is
// returned so the caller can decide whether to finalize a truncated run.
func Drain(ctx context.Context, source capture.Reader, engine *Engine) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		tx, err := source.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read transaction %d: %w", count+1, err)
		}
		engine.Ingest(tx)
		count++
	}
}
