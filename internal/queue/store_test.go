package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/framerange"
	"reelforge/internal/jobgraph"
	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func jobOptions(id string, frames framerange.Set) jobgraph.Options {
	return jobgraph.Options{
		JobID:           id,
		Sequence:        "/plates/shot_0001.png",
		OutputFile:      "/deliver/shot.mov",
		Preset:          "/presets/prores.blend",
		FrameRange:      frames,
		SegmentDuration: 10,
	}
}

func statusOf(t *testing.T, store *queue.Store, jobID, name string) jobgraph.Status {
	t.Helper()
	unit, err := store.Unit(context.Background(), jobID, name)
	if err != nil {
		t.Fatalf("Unit(%s) failed: %v", name, err)
	}
	return unit.Status
}

func TestSubmitStoresGraph(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	graph := testsupport.MustSubmit(t, store, jobOptions("job-1", framerange.Span(1, 30)))

	job, err := store.Job(ctx, "job-1")
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if job.Name != "Transcode: shot.mov" || job.Status != queue.JobStatusPending {
		t.Fatalf("unexpected job %+v", job)
	}
	if !job.Package.FrameRange.Equal(framerange.Span(1, 30)) {
		t.Fatalf("frame range not preserved: %s", job.Package.FrameRange)
	}

	units, err := store.Units(ctx, "job-1")
	if err != nil {
		t.Fatalf("Units failed: %v", err)
	}
	var got, want []string
	for _, u := range units {
		got = append(got, u.Name)
	}
	for _, u := range graph.Units {
		want = append(want, u.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unit order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(graph.Units[1].Package, units[1].Package); diff != "" {
		t.Fatalf("package mismatch (-want +got):\n%s", diff)
	}

	callbacks, err := store.Callbacks(ctx, "job-1")
	if err != nil {
		t.Fatalf("Callbacks failed: %v", err)
	}
	if len(callbacks) != len(graph.Callbacks) {
		t.Fatalf("expected %d callbacks, got %d", len(graph.Callbacks), len(callbacks))
	}

	if _, err := store.Submit(ctx, graph); !errors.Is(err, queue.ErrJobExists) {
		t.Fatalf("expected ErrJobExists, got %v", err)
	}
}

func TestSubmitRejectsInvalidGraph(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	graph := &jobgraph.Graph{Job: jobgraph.Job{ID: "bad"}}
	if _, err := store.Submit(context.Background(), graph); err == nil {
		t.Fatal("expected validation error for graph without units")
	}
}

func TestEndToEndUnblocking(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("e2e", framerange.Span(1, 199)))

	units, err := store.Units(ctx, "e2e")
	if err != nil {
		t.Fatalf("Units failed: %v", err)
	}
	if len(units) != 22 {
		t.Fatalf("expected 22 units, got %d", len(units))
	}

	init := testsupport.MustClaim(t, store, "w1")
	if init.Name != jobgraph.InitializeName || init.Status != jobgraph.StatusRunning || init.Attempts != 1 {
		t.Fatalf("unexpected first claim %+v", init)
	}
	if unit, err := store.Next(ctx, "w2"); err != nil || unit != nil {
		t.Fatalf("nothing else should be pending, got %+v, %v", unit, err)
	}
	if err := store.Complete(ctx, "e2e", init.Name, "w1", nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[jobgraph.StatusPending] != 20 || stats[jobgraph.StatusBlocked] != 1 {
		t.Fatalf("all segments should be pending, output blocked: %v", stats)
	}

	for i := 0; i < 20; i++ {
		unit := testsupport.MustClaim(t, store, fmt.Sprintf("w%d", i%3))
		if unit.Kind != jobgraph.KindSegment {
			t.Fatalf("expected segment, got %s", unit.Name)
		}
		if got := statusOf(t, store, "e2e", "Output:shot.mov"); got != jobgraph.StatusBlocked {
			t.Fatalf("output unblocked early after %d segments: %s", i, got)
		}
		result := jobgraph.SegmentResult{Changed: true, SegmentFile: unit.Package[jobgraph.KeySegmentFile]}
		if err := store.Complete(ctx, "e2e", unit.Name, unit.WorkerID, result.Map()); err != nil {
			t.Fatalf("Complete(%s) failed: %v", unit.Name, err)
		}
	}
	if got := statusOf(t, store, "e2e", "Output:shot.mov"); got != jobgraph.StatusPending {
		t.Fatalf("output should be pending once every segment completed, got %s", got)
	}

	output := testsupport.MustClaim(t, store, "w9")
	if output.Name != "Output:shot.mov" {
		t.Fatalf("expected output unit, got %s", output.Name)
	}
	if err := store.Complete(ctx, "e2e", output.Name, "w9", jobgraph.OutputResult{OutputFile: "/deliver/shot.mov"}.Map()); err != nil {
		t.Fatalf("Complete(output) failed: %v", err)
	}

	job, err := store.Job(ctx, "e2e")
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if job.Status != queue.JobStatusComplete {
		t.Fatalf("expected complete job, got %s (%v)", job.Status, job.Counts)
	}

	callbacks, err := store.Callbacks(ctx, "e2e")
	if err != nil {
		t.Fatalf("Callbacks failed: %v", err)
	}
	for _, cb := range callbacks {
		if cb.FiredAt == nil {
			t.Fatalf("callback %s never fired", cb.Callback.Trigger)
		}
	}
}

func TestCompleteRequiresRunningClaim(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("claims", framerange.Span(1, 10)))

	var transition *queue.TransitionError
	if err := store.Complete(ctx, "claims", "Segment:1-10", "", nil); !errors.As(err, &transition) {
		t.Fatalf("completing a blocked unit should fail with TransitionError, got %v", err)
	}
	if transition.From != jobgraph.StatusBlocked {
		t.Fatalf("unexpected transition error %+v", transition)
	}

	testsupport.MustClaim(t, store, "owner")
	var notOwned *queue.NotOwnedError
	if err := store.Complete(ctx, "claims", jobgraph.InitializeName, "intruder", nil); !errors.As(err, &notOwned) {
		t.Fatalf("expected NotOwnedError, got %v", err)
	}
	if err := store.Complete(ctx, "claims", "Nope", "owner", nil); !errors.Is(err, queue.ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
}

func TestFailRequeuesRetryableUntilAttemptsRunOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.MaxAttempts = 2
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("fail", framerange.Span(1, 10)))

	unit := testsupport.MustClaim(t, store, "w1")
	status, err := store.Fail(ctx, "fail", unit.Name, "w1", "scene missing", true)
	if err != nil || status != jobgraph.StatusPending {
		t.Fatalf("first retryable failure should requeue, got %s, %v", status, err)
	}

	unit = testsupport.MustClaim(t, store, "w2")
	if unit.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", unit.Attempts)
	}
	status, err = store.Fail(ctx, "fail", unit.Name, "w2", "scene missing", true)
	if err != nil || status != jobgraph.StatusFailed {
		t.Fatalf("attempts exhausted should fail, got %s, %v", status, err)
	}

	stored, err := store.Unit(ctx, "fail", unit.Name)
	if err != nil {
		t.Fatalf("Unit failed: %v", err)
	}
	if stored.ErrorMessage != "scene missing" {
		t.Fatalf("error message not stored: %+v", stored)
	}
	job, err := store.Job(ctx, "fail")
	if err != nil || job.Status != queue.JobStatusFailed {
		t.Fatalf("job should be failed, got %+v, %v", job, err)
	}

	moved, err := store.Retry(ctx, "fail")
	if err != nil || moved != 1 {
		t.Fatalf("Retry moved %d, %v", moved, err)
	}
	unit = testsupport.MustClaim(t, store, "w3")
	if unit.Attempts != 1 {
		t.Fatalf("retry should reset attempts, got %d", unit.Attempts)
	}
}

func TestFailNonRetryableStaysFailed(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("hard", framerange.Span(1, 10)))

	unit := testsupport.MustClaim(t, store, "w1")
	status, err := store.Fail(ctx, "hard", unit.Name, "w1", "encoder exited 1", false)
	if err != nil || status != jobgraph.StatusFailed {
		t.Fatalf("expected failed, got %s, %v", status, err)
	}
	if got := statusOf(t, store, "hard", "Segment:1-10"); got != jobgraph.StatusBlocked {
		t.Fatalf("sibling should stay blocked, got %s", got)
	}
}

func TestBlockAndHeartbeat(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("block", framerange.Span(1, 10)))

	unit := testsupport.MustClaim(t, store, "w1")
	alive, err := store.Heartbeat(ctx, "block", unit.Name, "w1")
	if err != nil || !alive {
		t.Fatalf("heartbeat should succeed, got %v, %v", alive, err)
	}
	if alive, _ := store.Heartbeat(ctx, "block", unit.Name, "w2"); alive {
		t.Fatal("heartbeat from another worker should not refresh the claim")
	}

	moved, err := store.Block(ctx, "block", unit.Name)
	if err != nil || moved != 1 {
		t.Fatalf("Block moved %d, %v", moved, err)
	}
	alive, err = store.Heartbeat(ctx, "block", unit.Name, "w1")
	if err != nil || alive {
		t.Fatalf("blocked unit should report not alive, got %v, %v", alive, err)
	}
	var transition *queue.TransitionError
	if err := store.Complete(ctx, "block", unit.Name, "w1", nil); !errors.As(err, &transition) {
		t.Fatalf("completing a blocked unit should fail, got %v", err)
	}

	moved, err = store.Unblock(ctx, "block", unit.Name)
	if err != nil || moved != 1 {
		t.Fatalf("Unblock moved %d, %v", moved, err)
	}
	if got := statusOf(t, store, "block", unit.Name); got != jobgraph.StatusPending {
		t.Fatalf("expected pending after unblock, got %s", got)
	}

	if _, err := store.Block(ctx, "missing-job"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestReclaimStale(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("stale", framerange.Span(1, 10)))

	unit := testsupport.MustClaim(t, store, "w1")
	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || reclaimed != 0 {
		t.Fatalf("fresh claim should not be reclaimed, got %d, %v", reclaimed, err)
	}
	reclaimed, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil || reclaimed != 1 {
		t.Fatalf("expected one reclaimed unit, got %d, %v", reclaimed, err)
	}
	stored, err := store.Unit(ctx, "stale", unit.Name)
	if err != nil {
		t.Fatalf("Unit failed: %v", err)
	}
	if stored.Status != jobgraph.StatusPending || stored.WorkerID != "" {
		t.Fatalf("unexpected reclaimed unit %+v", stored)
	}

	events, err := store.Events(ctx, "stale")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []string{queue.EventSubmitted, queue.EventClaimed, queue.EventReclaimed}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("event history mismatch (-want +got):\n%s", diff)
	}
}

func TestNextOrdersJobsBySubmission(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustSubmit(t, store, jobOptions("first", framerange.Span(1, 10)))
	testsupport.MustSubmit(t, store, jobOptions("second", framerange.Span(1, 10)))

	if unit := testsupport.MustClaim(t, store, "w"); unit.JobID != "first" {
		t.Fatalf("expected first job, got %s", unit.JobID)
	}
	if unit := testsupport.MustClaim(t, store, "w"); unit.JobID != "second" {
		t.Fatalf("expected second job, got %s", unit.JobID)
	}
}

func TestClearCompletedAndRemove(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, jobOptions("keep", framerange.Span(1, 10)))

	removed, err := store.ClearCompleted(ctx)
	if err != nil || removed != 0 {
		t.Fatalf("nothing complete yet, removed %d, %v", removed, err)
	}
	if err := store.RemoveJob(ctx, "keep"); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if _, err := store.Job(ctx, "keep"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after removal, got %v", err)
	}
	if err := store.RemoveJob(ctx, "keep"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound for repeated removal, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingTables) != 0 || health.SchemaVersion != 1 {
		t.Fatalf("schema not initialized: %+v", health)
	}
	if health.DBPath != cfg.Paths.QueueDB {
		t.Fatalf("expected db path %s, got %s", cfg.Paths.QueueDB, health.DBPath)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.MustSubmit(t, store, jobOptions("persist", framerange.Span(1, 10)))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	jobs, err := reopened.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "persist" {
		t.Fatalf("unexpected jobs after reopen: %+v", jobs)
	}
}
