package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/spares/internal/inventory"
	"github.com/JonMunkholm/spares/internal/store"
)

func createOps(n int) []inventory.Operation {
	ops := make([]inventory.Operation, n)
	for i := range ops {
		ops[i] = inventory.Operation{
			Kind: inventory.OpCreate,
			After: inventory.Item{
				PrimaryCode: fmt.Sprintf("P%d", i),
				UnitValue:   decimal.NewFromInt(1),
				Contexts:    []inventory.ContextAssignment{},
			},
			Lines: []int{i + 2},
		}
	}
	return ops
}

func TestNewExecutor_ChunkBelowCeiling(t *testing.T) {
	tests := []struct {
		name      string
		maxOps    int
		chunkSize int
		wantErr   bool
		wantChunk int
	}{
		{name: "defaults", maxOps: 500, chunkSize: 0, wantChunk: DefaultChunkSize},
		{name: "one below ceiling", maxOps: 10, chunkSize: 9, wantChunk: 9},
		{name: "equal to ceiling", maxOps: 400, chunkSize: 400, wantErr: true},
		{name: "above ceiling", maxOps: 3, chunkSize: 5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := NewExecutor(store.NewMemory(tt.maxOps), tt.chunkSize, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChunk, exec.ChunkSize())
		})
	}
}

func TestExecutor_StopsAtFailedChunk(t *testing.T) {
	mem := store.NewMemory(3)
	mem.FailCommit(2, errors.New("store unavailable"))

	exec, err := NewExecutor(mem, 2, nil)
	require.NoError(t, err)

	ops := createOps(6)
	ops[0].Lines = []int{2, 3} // two file rows folded into one op

	res, err := exec.Execute(context.Background(), ops, inventory.OriginUser)
	require.Error(t, err)

	var se *ExternalStoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "commit", se.Op)
	assert.Equal(t, 2, se.Chunk)
	assert.Equal(t, 3, se.Chunks)

	assert.Equal(t, 3, res.ChunksTotal)
	assert.Equal(t, 1, res.ChunksCommitted)
	assert.Equal(t, 2, res.OpsApplied)
	assert.Equal(t, 4, res.OpsNotAttempted)
	assert.Equal(t, 3, res.RowsApplied)
	assert.Equal(t, 4, res.RowsNotAttempted)
	require.Len(t, res.Applied, 2)
	assert.Equal(t, int64(1), res.Revision, "revision of the last committed chunk")

	// Chunk 3 was never sent.
	assert.Equal(t, 2, mem.Commits())

	items, err := mem.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, res.Applied[0].After.ID, items[0].ID)
	assert.Equal(t, res.Applied[1].After.ID, items[1].ID)
	assert.Equal(t, "P0", items[0].PrimaryCode)
	assert.Equal(t, "P1", items[1].PrimaryCode)
}

func TestExecutor_ProgressAndUpdates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(3)
	require.NoError(t, mem.Seed(inventory.Item{ID: "it-1", PrimaryCode: "A1", Contexts: []inventory.ContextAssignment{}}))

	exec, err := NewExecutor(mem, 2, nil)
	require.NoError(t, err)

	before, err := mem.ListItems(ctx)
	require.NoError(t, err)
	after := before[0].Clone()
	after.Description = "Rodamiento"

	ops := append(createOps(2), inventory.Operation{
		Kind:   inventory.OpUpdate,
		Before: before[0],
		After:  after,
		Lines:  []int{9},
	})

	var progress []ChunkProgress
	res, err := exec.WithProgress(func(p ChunkProgress) { progress = append(progress, p) }).
		Execute(ctx, ops, inventory.OriginUser)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChunksCommitted)
	assert.Equal(t, 3, res.RowsApplied)
	assert.Equal(t, 0, res.RowsNotAttempted)
	assert.Equal(t, []ChunkProgress{
		{Chunk: 1, Chunks: 2, OpsApplied: 2, RowsApplied: 2},
		{Chunk: 2, Chunks: 2, OpsApplied: 3, RowsApplied: 3},
	}, progress)

	items, err := mem.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Rodamiento", items[0].Description)

	// The original executor carries no callback.
	progress = nil
	_, err = exec.Execute(ctx, nil, inventory.OriginUser)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestExecutor_ReplaceCarriesOrigin(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(10)
	require.NoError(t, mem.Seed(inventory.Item{ID: "it-1", PrimaryCode: "A1"}))

	exec, err := NewExecutor(mem, 5, nil)
	require.NoError(t, err)

	res, err := exec.Replace(ctx, []inventory.Item{
		{ID: "it-1", PrimaryCode: "A1", Description: "restored"},
		{ID: "it-2", PrimaryCode: "B2"},
	}, inventory.OriginRestore)
	require.NoError(t, err)
	assert.Equal(t, 2, res.OpsApplied)

	for _, id := range []string{"it-1", "it-2"} {
		origin, ok := mem.Origin(id)
		require.True(t, ok, id)
		assert.Equal(t, inventory.OriginRestore, origin, id)
	}
}
