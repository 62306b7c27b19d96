// Package pagination drives infinite-scroll search: pages are fetched in
// strict cursor order, at most one at a time, and appended to the loaded
// collection until the server returns a short page.
package pagination

import (
	"context"
	"strings"
	"sync"

	"imgfetch/pkg/errors"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
)

// DefaultPageSize is the number of results requested per page
const DefaultPageSize = 12

// PageFetcher returns one page of results in server order
type PageFetcher interface {
	SearchLocal(ctx context.Context, query string, page, limit int) ([]models.Image, error)
}

// Snapshot is an immutable view of the page state
type Snapshot struct {
	Query      string
	Cursor     int
	PageSize   int
	Items      []models.Image
	HasMore    bool
	IsLoading  bool
	Generation uint64
	LastError  string
}

// Options configures a Controller
type Options struct {
	PageSize int
	Notifier notify.Notifier
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

// Controller owns the page state of one search view
type Controller struct {
	fetcher  PageFetcher
	pageSize int
	notifier notify.Notifier
	logger   logger.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	query      string
	cursor     int
	items      []models.Image
	hasMore    bool
	isLoading  bool
	generation uint64
	lastErr    string
	observers  []func(Snapshot)
	version    uint64

	// emitMu orders observer delivery; delivered is the last version sent
	emitMu    sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

type pageRequest struct {
	gen   uint64
	query string
	page  int
}

// New creates a controller with no query submitted
func New(fetcher PageFetcher, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Controller{
		fetcher:  fetcher,
		pageSize: opts.PageSize,
		notifier: notify.OrNop(opts.Notifier),
		logger:   logger.OrDefault(opts.Logger).WithComponent("pagination"),
		metrics:  opts.Metrics,
		cursor:   1,
	}
}

// OnSnapshot registers fn to be called after every state change. Delivery is
// serialized and in state order; a snapshot superseded before delivery is
// skipped. Observers must not call back into Search, LoadNext, Near or
// Reset; feed proximity signals through Follow instead.
func (c *Controller) OnSnapshot(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the current page state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	items := make([]models.Image, len(c.items))
	copy(items, c.items)
	return Snapshot{
		Query:      c.query,
		Cursor:     c.cursor,
		PageSize:   c.pageSize,
		Items:      items,
		HasMore:    c.hasMore,
		IsLoading:  c.isLoading,
		Generation: c.generation,
		LastError:  c.lastErr,
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

// Search submits a fresh query: the state is cleared and page 1 replaces the
// loaded items. It may be called while a page is loading; the earlier fetch
// is superseded and its result dropped on arrival.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if err := models.Validate(models.SearchRequest{Query: query, Page: 1, Limit: c.pageSize}); err != nil {
		c.notifier.Notify(notify.Error("Error", "Please enter a search query."))
		return err
	}

	c.mu.Lock()
	c.generation++
	c.query = query
	c.cursor = 1
	c.items = nil
	c.hasMore = true
	c.isLoading = true
	c.lastErr = ""
	req := pageRequest{gen: c.generation, query: query, page: 1}
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.emit(snap, v)

	images, err := c.fetcher.SearchLocal(ctx, req.query, req.page, c.pageSize)
	applied, err := c.finish(req, images, err, true)
	if !applied || err == nil {
		return nil
	}
	return &errors.StartupNetworkError{Op: "search", Err: err}
}

// LoadNext appends the page at the cursor. It returns false without doing
// anything while a page is loading, after the server signaled exhaustion, or
// before any query was submitted.
func (c *Controller) LoadNext(ctx context.Context) (bool, error) {
	req, ok := c.begin()
	if !ok {
		return false, nil
	}

	images, err := c.fetcher.SearchLocal(ctx, req.query, req.page, c.pageSize)
	applied, err := c.finish(req, images, err, false)
	if !applied || err == nil {
		return applied, nil
	}
	return true, &errors.ItemNetworkError{Op: "load page", Err: err}
}

// Near is the proximity signal: the viewport approached the end of the
// loaded items. It starts a background append fetch when more pages exist
// and none is loading, and reports whether it did.
func (c *Controller) Near(ctx context.Context) bool {
	req, ok := c.begin()
	if !ok {
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		images, err := c.fetcher.SearchLocal(ctx, req.query, req.page, c.pageSize)
		c.finish(req, images, err, false)
	}()
	return true
}

// Follow calls Near for every signal until ctx ends or signals is closed
func (c *Controller) Follow(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			c.Near(ctx)
		}
	}
}

// Wait blocks until background fetches started by Near have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Reset drops the query and loaded items. In-flight results are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	c.query = ""
	c.cursor = 1
	c.items = nil
	c.hasMore = false
	c.isLoading = false
	c.lastErr = ""
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.emit(snap, v)
}

// Close resets the controller and waits for background fetches
func (c *Controller) Close() error {
	c.Reset()
	c.Wait()
	return nil
}

// begin claims the loading gate for an append fetch of the cursor page
func (c *Controller) begin() (pageRequest, bool) {
	c.mu.Lock()
	if c.isLoading || !c.hasMore || c.query == "" {
		c.mu.Unlock()
		return pageRequest{}, false
	}
	c.isLoading = true
	req := pageRequest{gen: c.generation, query: c.query, page: c.cursor}
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.emit(snap, v)
	return req, true
}

// finish applies a page result if its generation is still current. It
// reports whether the result was applied and returns the fetch error.
func (c *Controller) finish(req pageRequest, images []models.Image, err error, replace bool) (bool, error) {
	mode := "append"
	if replace {
		mode = "replace"
	}
	log := c.logger.WithFields(map[string]interface{}{
		"query":      req.query,
		"page":       req.page,
		"mode":       mode,
		"generation": req.gen,
	})

	c.mu.Lock()
	if req.gen != c.generation {
		c.mu.Unlock()
		c.metrics.IncStale("pagination")
		log.Debug("discarding superseded page result")
		return false, nil
	}
	c.isLoading = false

	if err != nil {
		c.lastErr = err.Error()
		snap, v := c.publishLocked()
		c.mu.Unlock()

		c.metrics.IncPageFailures()
		log.WithError(err).Warn("page fetch failed")
		c.notifier.Notify(notify.Error("Error", "Failed to fetch images. Please try again."))
		c.emit(snap, v)
		return true, err
	}

	if replace {
		c.items = append([]models.Image(nil), images...)
	} else {
		c.items = append(c.items, images...)
	}
	c.cursor = req.page + 1
	c.hasMore = len(images) == c.pageSize
	c.lastErr = ""
	snap, v := c.publishLocked()
	c.mu.Unlock()

	c.metrics.IncPagesLoaded(mode)
	log.DebugWithFields("page applied", map[string]interface{}{
		"received": len(images),
		"loaded":   len(snap.Items),
		"has_more": snap.HasMore,
	})
	if !snap.HasMore {
		c.logger.InfoWithFields("search results exhausted", map[string]interface{}{
			"query":  req.query,
			"loaded": len(snap.Items),
		})
	}
	c.emit(snap, v)
	return true, nil
}
