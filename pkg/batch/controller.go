// Package batch implements bulk image acquisition: after the server
// acknowledges a job, one image is fetched per cadence tick until the target
// count is reached, the job is canceled, or it is reset.
//
// Ticks do not wait for earlier fetches, so several results can be in flight
// at once. Every fetch is tagged with the generation of the job that issued
// it and its result is applied only if that generation is still current, the
// job is still running and the target has not been reached yet. Everything
// else is dropped on arrival without touching the registry.
package batch

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"imgfetch/pkg/errors"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
	"imgfetch/pkg/registry"
)

// DefaultCadence is the interval between single-item fetches
const DefaultCadence = time.Second

var (
	// ErrJobRunning is returned by operations that need a stopped job
	ErrJobRunning = stderrors.New("batch: job is running")

	// ErrItemNotFound is returned by Remove for an unknown sequence
	ErrItemNotFound = stderrors.New("batch: no item with that sequence")
)

// Snapshot is an immutable view of the current job
type Snapshot struct {
	Query        string
	TargetCount  int
	FetchedCount int
	Failures     int
	Items        []models.AcquiredItem
	Status       models.JobStatus
	Generation   uint64
}

// Options configures a Controller
type Options struct {
	Cadence    time.Duration
	AutoExport bool
	Exporter   Exporter
	NewTicker  TickerFunc
	Notifier   notify.Notifier
	Logger     logger.Logger
	Metrics    *metrics.Metrics
}

// Controller owns one batch acquisition job at a time
type Controller struct {
	fetcher  Fetcher
	store    Store
	cadence  time.Duration
	auto     bool
	exporter Exporter
	tickers  TickerFunc
	notifier notify.Notifier
	logger   logger.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	query      string
	target     int
	fetched    int
	failures   int
	items      []models.AcquiredItem
	status     models.JobStatus
	generation uint64
	ticker     Ticker
	stop       chan struct{}
	observers  []func(Snapshot)
	version    uint64

	// emitMu orders observer delivery; delivered is the last version sent
	emitMu    sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

// New creates an idle controller
func New(fetcher Fetcher, store Store, opts Options) *Controller {
	if opts.Cadence <= 0 {
		opts.Cadence = DefaultCadence
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}

	return &Controller{
		fetcher:  fetcher,
		store:    store,
		cadence:  opts.Cadence,
		auto:     opts.AutoExport,
		exporter: opts.Exporter,
		tickers:  opts.NewTicker,
		notifier: notify.OrNop(opts.Notifier),
		logger:   logger.OrDefault(opts.Logger).WithComponent("batch"),
		metrics:  opts.Metrics,
		status:   models.StatusIdle,
	}
}

// SetAutoExport toggles exporting on completion for jobs started afterwards
func (c *Controller) SetAutoExport(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auto = enabled
}

// OnSnapshot registers fn to be called after every state change. Observers
// run outside the controller lock, one at a time and in state order; a
// snapshot superseded before delivery is skipped. They must not block or
// call back into Start, Reset, Cancel or Remove.
func (c *Controller) OnSnapshot(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the current job state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	items := make([]models.AcquiredItem, len(c.items))
	copy(items, c.items)
	return Snapshot{
		Query:        c.query,
		TargetCount:  c.target,
		FetchedCount: c.fetched,
		Failures:     c.failures,
		Items:        items,
		Status:       c.status,
		Generation:   c.generation,
	}
}

// publishLocked stamps the current state for emit
func (c *Controller) publishLocked() (Snapshot, uint64) {
	c.version++
	return c.snapshotLocked(), c.version
}

func (c *Controller) emit(s Snapshot, version uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version

	c.mu.Lock()
	observers := make([]func(Snapshot), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Start begins a new job collecting target images for query. A running job
// is reset first and any previous items are released. ctx bounds the job:
// when it ends the job is canceled.
func (c *Controller) Start(ctx context.Context, query string, target int) error {
	query = strings.TrimSpace(query)
	if err := models.Validate(models.DownloadRequest{Query: query, Count: target}); err != nil {
		c.notifier.Notify(notify.Error("Error", "Please enter a search query and a positive image count (%v).", err))
		return err
	}

	c.mu.Lock()
	c.stopTickerLocked()
	released := c.discardLocked()
	c.generation++
	gen := c.generation
	c.query = query
	c.target = target
	c.status = models.StatusRunning
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.store.ReleaseAll(released)
	c.emit(snap, v)

	log := c.logger.WithFields(map[string]interface{}{
		"query":      query,
		"target":     target,
		"generation": gen,
	})
	log.Info("starting batch job")

	err := c.fetcher.StartDownload(ctx, query, target)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.metrics.IncStale("batch")
		log.Debug("job superseded during startup")
		return nil
	}

	if err != nil {
		c.status = models.StatusFailed
		snap, v = c.publishLocked()
		c.mu.Unlock()

		startErr := &errors.StartupNetworkError{Op: "start download", Err: err}
		log.WithError(err).Error("failed to initiate download")
		c.notifier.Notify(notify.Error("Error", "Failed to initiate download. Please try again."))
		c.emit(snap, v)
		return startErr
	}

	ticker := c.tickers(c.cadence)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stop = stop
	c.wg.Add(1)
	c.mu.Unlock()

	logger.LogComponentStart(c.logger, "batch-ticker", map[string]interface{}{
		"cadence":    c.cadence,
		"generation": gen,
	})
	go c.run(ctx, gen, query, ticker, stop)
	return nil
}

// run issues one fetch per tick until the ticker is disarmed
func (c *Controller) run(ctx context.Context, gen uint64, query string, ticker Ticker, stop chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stop:
			logger.LogComponentStop(c.logger, "batch-ticker", "disarmed")
			return
		case <-ctx.Done():
			c.cancel(gen, "context done")
			return
		case <-ticker.C():
			if !c.tickCurrent(gen) {
				return
			}
			c.metrics.IncTicks()
			c.wg.Add(1)
			go c.fetch(ctx, gen, query)
		}
	}
}

func (c *Controller) tickCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation && c.status == models.StatusRunning && c.fetched < c.target
}

func (c *Controller) fetch(ctx context.Context, gen uint64, query string) {
	defer c.wg.Done()
	data, err := c.fetcher.FetchImage(ctx, query)
	c.apply(ctx, gen, data, err)
}

// apply reconciles one fetch result with the current job
func (c *Controller) apply(ctx context.Context, gen uint64, data []byte, err error) {
	c.mu.Lock()
	if gen != c.generation || c.status != models.StatusRunning || c.fetched >= c.target {
		current := c.generation
		c.mu.Unlock()

		c.metrics.IncStale("batch")
		c.logger.DebugWithFields("discarding stale fetch result", map[string]interface{}{
			"generation":         gen,
			"current_generation": current,
			"failed":             err != nil,
		})
		return
	}

	if ctx.Err() != nil {
		c.mu.Unlock()
		c.metrics.IncStale("batch")
		c.cancel(gen, "context done")
		return
	}

	if err != nil {
		c.failures++
		snap, v := c.publishLocked()
		c.mu.Unlock()

		c.metrics.IncItemFailures()
		itemErr := &errors.ItemNetworkError{Op: "fetch image", Err: err}
		c.logger.WithError(itemErr).WarnWithFields("single image fetch failed", map[string]interface{}{
			"query":   snap.Query,
			"fetched": snap.FetchedCount,
		})
		c.notifier.Notify(notify.Error("Error", "Failed to fetch an image. Please try again."))
		c.emit(snap, v)
		return
	}

	h, info := c.store.Register(data)
	c.items = append(c.items, models.AcquiredItem{
		Handle:      h,
		Query:       c.query,
		Sequence:    c.fetched,
		Size:        info.Size,
		ContentType: info.ContentType,
	})
	c.fetched++

	completed := c.fetched == c.target
	if completed {
		c.status = models.StatusCompleted
		c.stopTickerLocked()
	}
	autoExport := completed && c.auto && c.exporter != nil
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.metrics.IncItemsFetched()
	logger.LogAcquisitionProgress(c.logger, snap.Query, snap.FetchedCount, snap.TargetCount)
	c.emit(snap, v)

	if completed {
		c.logger.InfoWithFields("batch job completed", map[string]interface{}{
			"query":    snap.Query,
			"fetched":  snap.FetchedCount,
			"failures": snap.Failures,
		})
		c.notifier.Notify(notify.Success("Success", "Downloaded %d images successfully.", snap.TargetCount))
		if autoExport {
			c.exporter.ExportAll(context.WithoutCancel(ctx), snap.Items)
		}
	}
}

// Reset disarms the ticker, discards the job and releases every handle it
// owned. The controller returns to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.stopTickerLocked()
	released := c.discardLocked()
	c.generation++
	snap, v := c.publishLocked()
	c.mu.Unlock()

	n := c.store.ReleaseAll(released)
	c.logger.DebugWithFields("batch job reset", map[string]interface{}{
		"released":   n,
		"generation": snap.Generation,
	})
	c.emit(snap, v)
}

// Cancel stops a running job and keeps the items collected so far
func (c *Controller) Cancel() {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.cancel(gen, "canceled")
}

func (c *Controller) cancel(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.generation || c.status != models.StatusRunning {
		c.mu.Unlock()
		return
	}
	c.stopTickerLocked()
	c.generation++
	c.status = models.StatusCanceled
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.logger.InfoWithFields("batch job canceled", map[string]interface{}{
		"query":   snap.Query,
		"fetched": snap.FetchedCount,
		"target":  snap.TargetCount,
		"reason":  reason,
	})
	c.notifier.Notify(notify.Info("Canceled", "Stopped after %d of %d images.", snap.FetchedCount, snap.TargetCount))
	c.emit(snap, v)
}

// Remove drops the item with the given sequence from a job that is not
// running and releases its handle. Remaining sequences keep their values.
// On a completed job the target shrinks with the item count.
func (c *Controller) Remove(sequence int) error {
	c.mu.Lock()
	if c.status == models.StatusRunning {
		c.mu.Unlock()
		return ErrJobRunning
	}

	idx := -1
	for i, item := range c.items {
		if item.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrItemNotFound
	}

	removed := c.items[idx]
	items := make([]models.AcquiredItem, 0, len(c.items)-1)
	items = append(items, c.items[:idx]...)
	c.items = append(items, c.items[idx+1:]...)
	c.fetched--
	if c.status == models.StatusCompleted {
		c.target--
	}
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.store.Release(removed.Handle)
	c.emit(snap, v)
	return nil
}

// Wait blocks until the ticker loop and every in-flight fetch have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close resets the controller and waits for in-flight fetches
func (c *Controller) Close() error {
	c.Reset()
	c.Wait()
	return nil
}

func (c *Controller) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.ticker = nil
	c.stop = nil
}

// discardLocked clears the job and returns the handles it owned
func (c *Controller) discardLocked() []registry.Handle {
	handles := make([]registry.Handle, 0, len(c.items))
	for _, item := range c.items {
		handles = append(handles, item.Handle)
	}
	c.items = nil
	c.query = ""
	c.target = 0
	c.fetched = 0
	c.failures = 0
	c.status = models.StatusIdle
	return handles
}
