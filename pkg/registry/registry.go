// Package registry owns the locally materialized handles that reference
// fetched binary payloads.
//
// A Handle is created when raw bytes arrive and is dereferenced only through
// the Registry that issued it. Release is idempotent and an unknown handle
// is never an error, so owners can release on every teardown path without
// tracking what was already freed.
package registry

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
)

// ErrReleased is returned when dereferencing a handle that is not live
var ErrReleased = errors.New("registry: handle released or unknown")

// Handle is an opaque reference to registered bytes
type Handle struct {
	id uuid.UUID
}

// ID returns the handle identifier
func (h Handle) ID() string { return h.id.String() }

// URL returns the local reference form of the handle
func (h Handle) URL() string { return "local:" + h.id.String() }

// IsZero reports whether h was never issued by a registry
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

func (h Handle) String() string { return h.URL() }

// MarshalText renders the handle by its local URL
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.URL()), nil
}

// Info describes a registered payload
type Info struct {
	Size        int
	ContentType string
	Extension   string
}

type entry struct {
	data []byte
	info Info
}

// Registry tracks live handles
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates an empty registry. Both arguments may be nil.
func New(log logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]entry),
		logger:  logger.OrDefault(log).WithComponent("registry"),
		metrics: m,
	}
}

// Register takes ownership of data and returns a new live handle with the
// payload's sniffed info
func (r *Registry) Register(data []byte) (Handle, Info) {
	mt := mimetype.Detect(data)
	h := Handle{id: uuid.New()}
	info := Info{
		Size:        len(data),
		ContentType: mt.String(),
		Extension:   mt.Extension(),
	}

	r.mu.Lock()
	r.entries[h.id] = entry{data: data, info: info}
	live := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetLiveHandles(live)
	r.logger.DebugWithFields("handle registered", map[string]interface{}{
		"handle":       h.ID(),
		"size":         info.Size,
		"content_type": info.ContentType,
	})
	return h, info
}

// Open returns a reader over the payload. The reader must not be used after
// the handle is released.
func (r *Registry) Open(h Handle) (io.Reader, Info, error) {
	r.mu.RLock()
	e, ok := r.entries[h.id]
	r.mu.RUnlock()
	if !ok {
		return nil, Info{}, ErrReleased
	}
	return bytes.NewReader(e.data), e.info, nil
}

// Bytes returns the payload of a live handle
func (r *Registry) Bytes(h Handle) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h.id]
	if !ok {
		return nil, ErrReleased
	}
	return e.data, nil
}

// Info returns the metadata captured at register time
func (r *Registry) Info(h Handle) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h.id]
	if !ok {
		return Info{}, ErrReleased
	}
	return e.info, nil
}

// Live reports whether h is currently registered
func (r *Registry) Live(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[h.id]
	return ok
}

// Release frees the payload behind h. Releasing twice or releasing an
// unknown handle does nothing.
func (r *Registry) Release(h Handle) {
	r.ReleaseAll([]Handle{h})
}

// ReleaseAll releases every handle in hs and returns how many were live
func (r *Registry) ReleaseAll(hs []Handle) int {
	if len(hs) == 0 {
		return 0
	}

	r.mu.Lock()
	released := 0
	for _, h := range hs {
		if _, ok := r.entries[h.id]; ok {
			delete(r.entries, h.id)
			released++
		}
	}
	live := len(r.entries)
	r.mu.Unlock()

	if released > 0 {
		r.metrics.SetLiveHandles(live)
		r.logger.DebugWithFields("handles released", map[string]interface{}{
			"released": released,
			"live":     live,
		})
	}
	return released
}

// Close releases every live handle. The registry stays usable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	released := len(r.entries)
	r.entries = make(map[uuid.UUID]entry)
	r.mu.Unlock()

	r.metrics.SetLiveHandles(0)
	if released > 0 {
		r.logger.InfoWithFields("registry closed", map[string]interface{}{
			"released": released,
		})
	}
	return nil
}

// Len returns the number of live handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
