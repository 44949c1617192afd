package testsupport

import (
	"context"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/jobgraph"
	"reelforge/internal/queue"
)

// MustOpenStore opens the queue database named by cfg and closes it when the
// test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue %s: %v", cfg.Paths.QueueDB, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustSubmit plans a job from opts and enqueues its units.
func MustSubmit(t testing.TB, store *queue.Store, opts jobgraph.Options) *jobgraph.Graph {
	t.Helper()
	graph, err := jobgraph.Build(opts)
	if err != nil {
		t.Fatalf("plan job %q: %v", opts.JobID, err)
	}
	if _, err := store.Submit(context.Background(), graph); err != nil {
		t.Fatalf("submit job %q with %d units: %v", opts.JobID, len(graph.Units), err)
	}
	return graph
}

// MustClaim takes the next runnable unit for workerID and fails the test
// when nothing is runnable.
func MustClaim(t testing.TB, store *queue.Store, workerID string) *queue.Unit {
	t.Helper()
	unit, err := store.Next(context.Background(), workerID)
	if err != nil {
		t.Fatalf("claim unit for %s: %v", workerID, err)
	}
	if unit == nil {
		t.Fatalf("no runnable unit for %s", workerID)
	}
	return unit
}
