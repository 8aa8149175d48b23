package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/metrics"
	"github.com/JonMunkholm/spares/internal/store"
)

// DefaultChunkSize is the number of mutations per committed batch.
const DefaultChunkSize = 400

// ExternalStoreError reports a failed call to the document store.
type ExternalStoreError struct {
	Op     string // commit, list, subscribe, add, update, history
	Chunk  int    // 1-based failed chunk; 0 when not chunked
	Chunks int
	Err    error
}

func (e *ExternalStoreError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("document store %s failed at chunk %d of %d: %v", e.Op, e.Chunk, e.Chunks, e.Err)
	}
	return fmt.Sprintf("document store %s failed: %v", e.Op, e.Err)
}

func (e *ExternalStoreError) Unwrap() error { return e.Err }

// ChunkProgress is reported after every committed chunk.
type ChunkProgress struct {
	Chunk       int
	Chunks      int
	OpsApplied  int
	RowsApplied int
}

// ExecResult describes how far an execution got.
type ExecResult struct {
	ChunksTotal      int
	ChunksCommitted  int
	OpsApplied       int
	OpsNotAttempted  int
	RowsApplied      int
	RowsNotAttempted int
	// Revision is the store revision of the last committed chunk, 0 when
	// nothing was committed.
	Revision int64
	// Applied holds the committed operations, with IDs assigned to creates.
	Applied []inventory.Operation
}

// Executor writes mutations in sequential chunks. A failed chunk stops the
// run: earlier chunks stay committed and later ones are never sent.
type Executor struct {
	store     BatchCommitter
	chunkSize int
	logger    *slog.Logger
	onChunk   func(ChunkProgress)
}

// NewExecutor returns an Executor. chunkSize must be positive and strictly
// below the store's batch ceiling.
func NewExecutor(bc BatchCommitter, chunkSize int, logger *slog.Logger) (*Executor, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if limit := bc.MaxBatchOps(); chunkSize >= limit {
		return nil, fmt.Errorf("chunk size %d must be below the store batch limit %d", chunkSize, limit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: bc, chunkSize: chunkSize, logger: logger}, nil
}

// WithProgress returns a copy of e that calls fn after each committed chunk.
func (e *Executor) WithProgress(fn func(ChunkProgress)) *Executor {
	c := *e
	c.onChunk = fn
	return &c
}

// ChunkSize returns the configured chunk size.
func (e *Executor) ChunkSize() int { return e.chunkSize }

// Execute commits planned operations. Creates without an ID get one.
func (e *Executor) Execute(ctx context.Context, ops []inventory.Operation, origin inventory.Origin) (ExecResult, error) {
	ops = append([]inventory.Operation(nil), ops...)
	muts := make([]store.Mutation, len(ops))
	weights := make([]int, len(ops))
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case inventory.OpCreate:
			if op.After.ID == "" {
				op.After.ID = uuid.NewString()
			}
			muts[i] = store.Mutation{Kind: store.MutationCreate, ID: op.After.ID, Doc: op.After, Origin: origin}
		default:
			muts[i] = store.Mutation{Kind: store.MutationUpdate, ID: op.After.ID, Patch: op.Patch(), Origin: origin}
		}
		weights[i] = len(op.Lines)
	}

	res, err := e.commit(ctx, muts, weights)
	res.Applied = ops[:res.OpsApplied]
	return res, err
}

// Replace writes whole documents, inserting missing ones.
func (e *Executor) Replace(ctx context.Context, items []inventory.Item, origin inventory.Origin) (ExecResult, error) {
	muts := make([]store.Mutation, len(items))
	weights := make([]int, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		muts[i] = store.Mutation{Kind: store.MutationReplace, ID: it.ID, Doc: it, Origin: origin}
		weights[i] = 1
	}
	return e.commit(ctx, muts, weights)
}

// commit is the chunk loop. weights[i] is the number of source rows behind
// muts[i].
func (e *Executor) commit(ctx context.Context, muts []store.Mutation, weights []int) (ExecResult, error) {
	res := ExecResult{ChunksTotal: (len(muts) + e.chunkSize - 1) / e.chunkSize}
	for _, w := range weights {
		res.RowsNotAttempted += w
	}
	res.OpsNotAttempted = len(muts)

	for chunk := 1; chunk <= res.ChunksTotal; chunk++ {
		start := (chunk - 1) * e.chunkSize
		end := min(start+e.chunkSize, len(muts))

		rev, err := e.store.CommitBatch(ctx, muts[start:end])
		if err != nil {
			metrics.RecordChunk(false)
			e.logger.Error("chunk commit failed",
				"chunk", chunk,
				"chunks", res.ChunksTotal,
				"ops_applied", res.OpsApplied,
				"error", err,
			)
			return res, &ExternalStoreError{Op: "commit", Chunk: chunk, Chunks: res.ChunksTotal, Err: err}
		}
		metrics.RecordChunk(true)

		rows := 0
		for _, w := range weights[start:end] {
			rows += w
		}
		res.ChunksCommitted++
		res.Revision = rev
		res.OpsApplied += end - start
		res.OpsNotAttempted -= end - start
		res.RowsApplied += rows
		res.RowsNotAttempted -= rows

		e.logger.Debug("chunk committed", "chunk", chunk, "chunks", res.ChunksTotal, "ops", end-start)
		if e.onChunk != nil {
			e.onChunk(ChunkProgress{
				Chunk:       chunk,
				Chunks:      res.ChunksTotal,
				OpsApplied:  res.OpsApplied,
				RowsApplied: res.RowsApplied,
			})
		}
	}
	return res, nil
}
