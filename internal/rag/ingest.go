package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ingestConcurrency bounds parallel embedding requests during ingestion so a
// local embedding server is not flooded at session start.
const ingestConcurrency = 4

// Ingestor chunks knowledge text and indexes the embedded chunks into a
// store.
type Ingestor struct {
	embedder Embedder
	store    Store
	perChunk int
	overlap  int
	log      *slog.Logger
}

// NewIngestor creates an Ingestor writing to store. perChunk is the number
// of sentences per window; overlap the number shared between neighbours.
func NewIngestor(embedder Embedder, store Store, perChunk, overlap int, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		embedder: embedder,
		store:    store,
		perChunk: perChunk,
		overlap:  overlap,
		log:      log,
	}
}

// Ingest splits text into sentence windows, embeds them with bounded
// concurrency and adds them to the store. Chunks whose embedding comes back
// empty are skipped with a warning; a store failure aborts the whole
// ingestion.
func (in *Ingestor) Ingest(ctx context.Context, text string) error {
	windows := SentenceWindows(text, in.perChunk, in.overlap)
	if len(windows) == 0 {
		in.log.Warn("rag: knowledge text produced no chunks")
		return nil
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, w := range windows {
		w := w
		g.Go(func() error {
			emb, err := in.embedder.Embed(ctx, w)
			if err != nil {
				return fmt.Errorf("rag: embed chunk: %w", err)
			}
			if len(emb) == 0 {
				in.log.Warn("rag: skipping chunk with empty embedding", "chars", len(w))
				return nil
			}
			return in.store.Add(ctx, Chunk{Text: w, Embedding: emb})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n, _ := in.store.Len(ctx)
	in.log.Info("rag: knowledge ingested",
		"chunks", len(windows), "indexed", n, "took", time.Since(start))
	return nil
}
