package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgfetch/pkg/errors"
	"imgfetch/pkg/export"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
	"imgfetch/pkg/registry"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

var errUnavailable = &errors.Error{Type: errors.ErrorTypeServerError, Message: "server error", Code: 503}

type fetchResult struct {
	data []byte
	err  error
	gate chan struct{}
}

type fakeFetcher struct {
	mu         sync.Mutex
	startErr   error
	startCalls int
	queries    []string
	results    []fetchResult
	calls      int
	// waitCtx makes every fetch block until its context ends
	waitCtx bool
}

func (f *fakeFetcher) StartDownload(_ context.Context, query string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeFetcher) FetchImage(ctx context.Context, category string) ([]byte, error) {
	f.mu.Lock()
	r := fetchResult{data: jpeg}
	if f.calls < len(f.results) {
		r = f.results[f.calls]
	}
	f.calls++
	f.queries = append(f.queries, category)
	waitCtx := f.waitCtx
	f.mu.Unlock()

	if waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if r.gate != nil {
		<-r.gate
	}
	return r.data, r.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingExporter struct {
	mu    sync.Mutex
	calls [][]models.AcquiredItem
	ctxs  []context.Context
}

func (e *recordingExporter) ExportAll(ctx context.Context, items []models.AcquiredItem) export.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, items)
	e.ctxs = append(e.ctxs, ctx)
	return export.Summary{Saved: len(items)}
}

type harness struct {
	ctrl     *Controller
	fetcher  *fakeFetcher
	reg      *registry.Registry
	recorder *notify.Recorder
	metrics  *metrics.Metrics
	tickers  chan *ManualTicker
	snaps    chan Snapshot
}

func newHarness(t *testing.T, f *fakeFetcher, opts Options) *harness {
	t.Helper()

	h := &harness{
		fetcher:  f,
		reg:      registry.New(logger.NewNopLogger(), nil),
		recorder: notify.NewRecorder(),
		metrics:  metrics.New(prometheus.NewRegistry()),
		tickers:  make(chan *ManualTicker, 8),
		snaps:    make(chan Snapshot, 64),
	}

	opts.NewTicker = func(time.Duration) Ticker {
		mt := NewManualTicker()
		h.tickers <- mt
		return mt
	}
	opts.Notifier = h.recorder
	opts.Logger = logger.NewTestLogger()
	opts.Metrics = h.metrics

	h.ctrl = New(f, h.reg, opts)
	h.ctrl.OnSnapshot(func(s Snapshot) { h.snaps <- s })
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func (h *harness) ticker(t *testing.T) *ManualTicker {
	t.Helper()
	select {
	case mt := <-h.tickers:
		return mt
	case <-time.After(2 * time.Second):
		t.Fatal("ticker was never armed")
		return nil
	}
}

func (h *harness) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-h.snaps:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot emitted")
		return Snapshot{}
	}
}

// tick fires one tick and waits for the snapshot produced by its result
func (h *harness) tick(t *testing.T, mt *ManualTicker) Snapshot {
	t.Helper()
	require.True(t, mt.Tick(), "ticker stopped")
	return h.next(t)
}

func (h *harness) stale() float64 {
	return testutil.ToFloat64(h.metrics.StaleResults.WithLabelValues("batch"))
}

func TestSuccessFailureSuccessSuccess(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{
		{data: jpeg},
		{err: errUnavailable},
		{data: jpeg},
		{data: jpeg},
	}}
	h := newHarness(t, f, Options{})

	statuses := []models.JobStatus{h.ctrl.Snapshot().Status}

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 3))
	started := h.next(t)
	assert.Equal(t, models.StatusRunning, started.Status)
	assert.Equal(t, 1, f.startCalls)

	mt := h.ticker(t)
	for i := 0; i < 4; i++ {
		statuses = append(statuses, h.tick(t, mt).Status)
	}

	assert.Equal(t, []models.JobStatus{
		models.StatusIdle,
		models.StatusRunning,
		models.StatusRunning,
		models.StatusRunning,
		models.StatusCompleted,
	}, statuses)
	h.ctrl.Wait()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, 3, snap.FetchedCount)
	assert.Equal(t, 3, snap.TargetCount)
	assert.Equal(t, 1, snap.Failures)
	require.Len(t, snap.Items, 3)
	for i, item := range snap.Items {
		assert.Equal(t, i, item.Sequence)
		assert.Equal(t, "cats", item.Query)
		assert.Equal(t, "image/jpeg", item.ContentType)
		assert.True(t, h.reg.Live(item.Handle))
	}

	assert.Equal(t, 1, h.recorder.Count(notify.LevelError))
	assert.Equal(t, 1, h.recorder.Count(notify.LevelSuccess))
	assert.True(t, mt.Stopped())
	assert.False(t, mt.Tick())
	assert.Equal(t, []string{"cats", "cats", "cats", "cats"}, f.queries)
}

func TestCompletedJobMatchesTarget(t *testing.T) {
	for target := 1; target <= 5; target++ {
		f := &fakeFetcher{}
		h := newHarness(t, f, Options{})

		require.NoError(t, h.ctrl.Start(context.Background(), "birds", target))
		h.next(t)
		mt := h.ticker(t)

		var snap Snapshot
		for i := 0; i < target; i++ {
			snap = h.tick(t, mt)
		}

		assert.Equal(t, models.StatusCompleted, snap.Status)
		assert.Equal(t, target, snap.FetchedCount)
		assert.Equal(t, target, snap.TargetCount)
		assert.Len(t, snap.Items, target)
		assert.Equal(t, target, h.reg.Len())
	}
}

func TestInFlightResultAfterCompletionIsDiscarded(t *testing.T) {
	first, second := make(chan struct{}), make(chan struct{})
	f := &fakeFetcher{results: []fetchResult{
		{data: jpeg, gate: first},
		{data: jpeg, gate: second},
	}}
	h := newHarness(t, f, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 1))
	h.next(t)
	mt := h.ticker(t)

	require.True(t, mt.Tick())
	require.True(t, mt.Tick())
	require.Eventually(t, func() bool { return f.callCount() == 2 }, time.Second, 5*time.Millisecond)

	close(first)
	assert.Equal(t, models.StatusCompleted, h.next(t).Status)

	close(second)
	h.ctrl.Wait()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, 1, snap.FetchedCount)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, 1, h.reg.Len())
	assert.Equal(t, 1.0, h.stale())
}

func TestStaleResultAfterResetIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{results: []fetchResult{{data: jpeg, gate: gate}}}
	h := newHarness(t, f, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 3))
	old := h.ticker(t)
	require.True(t, old.Tick())
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	h.ctrl.Reset()
	assert.True(t, old.Stopped())

	require.NoError(t, h.ctrl.Start(context.Background(), "dogs", 2))
	current := h.ticker(t)

	close(gate)
	require.Eventually(t, func() bool { return h.stale() == 1 }, time.Second, 5*time.Millisecond)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, "dogs", snap.Query)
	assert.Equal(t, 0, snap.FetchedCount)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, h.reg.Len())

	// drain snapshots from reset and restart
	for len(h.snaps) > 0 {
		<-h.snaps
	}
	h.tick(t, current)
	done := h.tick(t, current)
	assert.Equal(t, models.StatusCompleted, done.Status)
	for _, item := range done.Items {
		assert.Equal(t, "dogs", item.Query)
	}
}

func TestResetReleasesHandles(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 3))
	h.next(t)
	mt := h.ticker(t)
	h.tick(t, mt)
	before := h.tick(t, mt)
	require.Len(t, before.Items, 2)
	require.Equal(t, 2, h.reg.Len())

	h.ctrl.Reset()
	after := h.next(t)

	assert.Equal(t, models.StatusIdle, after.Status)
	assert.Empty(t, after.Items)
	assert.Equal(t, 0, after.FetchedCount)
	assert.Greater(t, after.Generation, before.Generation)
	assert.Equal(t, 0, h.reg.Len())
	for _, item := range before.Items {
		assert.False(t, h.reg.Live(item.Handle))
	}
	assert.True(t, mt.Stopped())
}

func TestStartWhileRunningRestarts(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 3))
	h.next(t)
	first := h.ticker(t)
	old := h.tick(t, first)

	require.NoError(t, h.ctrl.Start(context.Background(), "dogs", 2))
	restarted := h.next(t)

	assert.True(t, first.Stopped())
	assert.Equal(t, "dogs", restarted.Query)
	assert.Equal(t, models.StatusRunning, restarted.Status)
	assert.Empty(t, restarted.Items)
	assert.False(t, h.reg.Live(old.Items[0].Handle))

	second := h.ticker(t)
	assert.Equal(t, 1, h.tick(t, second).FetchedCount)
}

func TestStartValidation(t *testing.T) {
	f := &fakeFetcher{}
	h := newHarness(t, f, Options{})

	tests := []struct {
		query string
		count int
		field string
	}{
		{"", 3, "query"},
		{"   ", 3, "query"},
		{"cats", 0, "count"},
		{"cats", -1, "count"},
	}
	for _, tt := range tests {
		err := h.ctrl.Start(context.Background(), tt.query, tt.count)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))

		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, tt.field, vErr.Field)
	}

	assert.Equal(t, 0, f.startCalls)
	assert.Equal(t, models.StatusIdle, h.ctrl.Snapshot().Status)
	assert.Equal(t, len(tests), h.recorder.Count(notify.LevelError))
	assert.Empty(t, h.tickers)
}

func TestStartupFailure(t *testing.T) {
	f := &fakeFetcher{startErr: &errors.Error{Type: errors.ErrorTypeNetwork, Message: "connection refused"}}
	h := newHarness(t, f, Options{})

	err := h.ctrl.Start(context.Background(), "cats", 3)
	require.Error(t, err)
	assert.True(t, errors.IsStartup(err))
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))

	h.next(t)
	failed := h.next(t)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, 1, h.recorder.Count(notify.LevelError))
	assert.Empty(t, h.tickers)
	assert.Equal(t, 0, f.callCount())
}

func TestCancelKeepsItems(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{results: []fetchResult{{data: jpeg}, {data: jpeg, gate: gate}}}
	h := newHarness(t, f, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 5))
	h.next(t)
	mt := h.ticker(t)
	h.tick(t, mt)

	require.True(t, mt.Tick())
	require.Eventually(t, func() bool { return f.callCount() == 2 }, time.Second, 5*time.Millisecond)

	h.ctrl.Cancel()
	canceled := h.next(t)
	assert.Equal(t, models.StatusCanceled, canceled.Status)
	assert.True(t, mt.Stopped())

	close(gate)
	h.ctrl.Wait()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, models.StatusCanceled, snap.Status)
	assert.Equal(t, 1, snap.FetchedCount)
	assert.Equal(t, 1, h.reg.Len())
	assert.Equal(t, 1.0, h.stale())
	assert.Equal(t, 1, h.recorder.Count(notify.LevelInfo))

	// cancel on a stopped job does nothing
	h.ctrl.Cancel()
	assert.Equal(t, 1, h.recorder.Count(notify.LevelInfo))
}

func TestContextEndCancelsJob(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, h.ctrl.Start(ctx, "cats", 3))
	mt := h.ticker(t)
	cancel()

	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Status == models.StatusCanceled
	}, time.Second, 5*time.Millisecond)
	assert.True(t, mt.Stopped())
}

func TestRemove(t *testing.T) {
	h := newHarness(t, &fakeFetcher{}, Options{})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 3))
	h.next(t)
	mt := h.ticker(t)
	h.tick(t, mt)

	assert.ErrorIs(t, h.ctrl.Remove(0), ErrJobRunning)

	h.tick(t, mt)
	done := h.tick(t, mt)
	require.Equal(t, models.StatusCompleted, done.Status)

	require.NoError(t, h.ctrl.Remove(1))
	snap := h.next(t)

	require.Len(t, snap.Items, 2)
	assert.Equal(t, 0, snap.Items[0].Sequence)
	assert.Equal(t, 2, snap.Items[1].Sequence)
	assert.Equal(t, 2, snap.FetchedCount)
	assert.Equal(t, 2, snap.TargetCount)
	assert.Equal(t, 2, h.reg.Len())
	assert.False(t, h.reg.Live(done.Items[1].Handle))

	assert.ErrorIs(t, h.ctrl.Remove(1), ErrItemNotFound)
}

func TestAutoExportOnCompletion(t *testing.T) {
	exporter := &recordingExporter{}
	h := newHarness(t, &fakeFetcher{}, Options{AutoExport: true, Exporter: exporter})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 2))
	h.next(t)
	mt := h.ticker(t)
	h.tick(t, mt)
	h.tick(t, mt)
	h.ctrl.Wait()

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.calls, 1)
	assert.Len(t, exporter.calls[0], 2)
}

func TestAutoExportOutlivesJobContext(t *testing.T) {
	exporter := &recordingExporter{}
	h := newHarness(t, &fakeFetcher{}, Options{AutoExport: true, Exporter: exporter})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.ctrl.Start(ctx, "cats", 1))
	h.next(t)
	h.tick(t, h.ticker(t))
	h.ctrl.Wait()
	cancel()

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.ctxs, 1)
	assert.NoError(t, exporter.ctxs[0].Err())
}

func TestAutoExportDisabled(t *testing.T) {
	exporter := &recordingExporter{}
	h := newHarness(t, &fakeFetcher{}, Options{Exporter: exporter})

	require.NoError(t, h.ctrl.Start(context.Background(), "cats", 1))
	h.next(t)
	h.tick(t, h.ticker(t))
	h.ctrl.Wait()

	assert.Empty(t, exporter.calls)
}

func TestManualTicker(t *testing.T) {
	mt := NewManualTicker()
	received := make(chan struct{})
	go func() {
		<-mt.C()
		close(received)
	}()

	assert.True(t, mt.Tick())
	<-received

	mt.Stop()
	mt.Stop()
	assert.True(t, mt.Stopped())
	assert.False(t, mt.Tick())
}

func TestObserversSeeOverlappingResultsInOrder(t *testing.T) {
	const target = 8

	for round := 0; round < 50; round++ {
		gate := make(chan struct{})
		results := make([]fetchResult, target)
		for i := range results {
			results[i] = fetchResult{data: jpeg, gate: gate}
		}
		f := &fakeFetcher{results: results}
		h := newHarness(t, f, Options{})

		var mu sync.Mutex
		var seen []Snapshot
		h.ctrl.OnSnapshot(func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		})

		require.NoError(t, h.ctrl.Start(context.Background(), "cats", target))
		mt := h.ticker(t)
		for i := 0; i < target; i++ {
			require.True(t, mt.Tick())
		}
		require.Eventually(t, func() bool { return f.callCount() == target }, time.Second, time.Millisecond)

		close(gate)
		h.ctrl.Wait()

		mu.Lock()
		require.NotEmpty(t, seen)
		for i := 1; i < len(seen); i++ {
			require.GreaterOrEqual(t, seen[i].FetchedCount, seen[i-1].FetchedCount, "round %d", round)
		}
		last := seen[len(seen)-1]
		mu.Unlock()

		assert.Equal(t, models.StatusCompleted, last.Status, "round %d", round)
		assert.Equal(t, target, last.FetchedCount, "round %d", round)
		assert.Equal(t, h.ctrl.Snapshot().Status, last.Status)
	}
}

func TestContextEndWithFetchInFlightIsNotAFailure(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := &fakeFetcher{waitCtx: true}
		h := newHarness(t, f, Options{})
		ctx, cancel := context.WithCancel(context.Background())

		require.NoError(t, h.ctrl.Start(ctx, "cats", 3))
		mt := h.ticker(t)
		require.True(t, mt.Tick())
		require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

		cancel()
		h.ctrl.Wait()

		snap := h.ctrl.Snapshot()
		assert.Equal(t, models.StatusCanceled, snap.Status, "round %d", round)
		assert.Equal(t, 0, snap.Failures, "round %d", round)
		assert.Equal(t, 0, h.recorder.Count(notify.LevelError), "round %d", round)
		assert.Equal(t, 1, h.recorder.Count(notify.LevelInfo), "round %d", round)
		assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.ItemFailures), "round %d", round)
	}
}
