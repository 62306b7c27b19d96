package registry

import (
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestRegistry() *Registry {
	return New(logger.NewNopLogger(), nil)
}

func TestRegisterAndOpen(t *testing.T) {
	r := newTestRegistry()

	h, registered := r.Register(pngHeader)
	require.False(t, h.IsZero())
	assert.Equal(t, "local:"+h.ID(), h.URL())
	assert.Equal(t, 1, r.Len())

	rd, info, err := r.Open(h)
	require.NoError(t, err)
	data, err := io.ReadAll(rd)
	require.NoError(t, err)

	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, ".png", info.Extension)
	assert.Equal(t, len(pngHeader), info.Size)
	assert.Equal(t, info, registered)
}

func TestHandlesAreUnique(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Register([]byte("a"))
	b, _ := r.Register([]byte("a"))
	assert.NotEqual(t, a, b)
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	h, _ := r.Register([]byte("payload"))

	r.Release(h)
	r.Release(h)
	r.Release(Handle{})

	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Live(h))

	_, err := r.Bytes(h)
	assert.ErrorIs(t, err, ErrReleased)
	_, _, err = r.Open(h)
	assert.ErrorIs(t, err, ErrReleased)
	_, err = r.Info(h)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestReleaseAllCountsOnlyLiveHandles(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Register([]byte("a"))
	b, _ := r.Register([]byte("b"))
	keep, _ := r.Register([]byte("c"))

	r.Release(a)
	assert.Equal(t, 1, r.ReleaseAll([]Handle{a, b}))
	assert.Equal(t, 0, r.ReleaseAll(nil))
	assert.True(t, r.Live(keep))
	assert.Equal(t, 1, r.Len())
}

func TestCloseReleasesEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := New(logger.NewNopLogger(), m)

	var hs []Handle
	for _, payload := range []string{"1", "2", "3"} {
		h, _ := r.Register([]byte(payload))
		hs = append(hs, h)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LiveHandles))

	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LiveHandles))
	for _, h := range hs {
		assert.False(t, r.Live(h))
	}

	// still usable after close
	r.Register([]byte("4"))
	assert.Equal(t, 1, r.Len())
}

func TestHandleMarshalText(t *testing.T) {
	r := newTestRegistry()
	h, _ := r.Register([]byte("x"))
	text, err := h.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, h.URL(), string(text))
	assert.Equal(t, h.URL(), h.String())
}
