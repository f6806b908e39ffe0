package geolocation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/ecopoints/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLocator struct {
	permErr  error
	fixErr   error
	release  chan struct{}
	fixes    []geo.Coordinate
	prompts  atomic.Int32
	fixCalls atomic.Int32
	granted  bool
}

func (l *countingLocator) RequestPermission(ctx context.Context) (bool, error) {
	l.prompts.Add(1)
	return l.granted, l.permErr
}

func (l *countingLocator) CurrentFix(ctx context.Context) (geo.Coordinate, error) {
	n := l.fixCalls.Add(1)
	if l.release != nil {
		<-l.release
	}
	if l.fixErr != nil {
		return geo.Coordinate{}, l.fixErr
	}
	return l.fixes[int(n)-1], nil
}

var saoPaulo = geo.Coordinate{Lat: -23.5505, Long: -46.6333}

func TestAcquireResolved(t *testing.T) {
	loc := &countingLocator{granted: true, fixes: []geo.Coordinate{saoPaulo}}
	a := NewAcquirer(loc)
	assert.Equal(t, Idle, a.State())

	fix, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, fix)
	assert.Equal(t, Resolved, a.State())

	got, ok := a.Fix()
	assert.True(t, ok)
	assert.Equal(t, saoPaulo, got)
}

func TestAcquireSingleResolution(t *testing.T) {
	other := geo.Coordinate{Lat: 10, Long: 10}
	loc := &countingLocator{granted: true, fixes: []geo.Coordinate{saoPaulo, other}}
	a := NewAcquirer(loc)

	first, err := a.Acquire(context.Background())
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		again, err := a.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, int32(1), loc.prompts.Load())
	assert.Equal(t, int32(1), loc.fixCalls.Load())
}

func TestAcquireDeniedIsTerminal(t *testing.T) {
	loc := &countingLocator{granted: false}
	a := NewAcquirer(loc)

	_, err := a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, PermissionDenied, a.State())

	_, err = a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, ok := a.Fix()
	assert.False(t, ok)
	assert.Equal(t, int32(1), loc.prompts.Load())
	assert.Equal(t, int32(0), loc.fixCalls.Load())
}

func TestAcquirePermissionErrorCountsAsDenied(t *testing.T) {
	boom := errors.New("prompt crashed")
	a := NewAcquirer(&countingLocator{granted: true, permErr: boom})

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PermissionDenied, a.State())
}

func TestAcquireFixFailure(t *testing.T) {
	boom := errors.New("gps off")
	loc := &countingLocator{granted: true, fixErr: boom}
	a := NewAcquirer(loc)

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Unresolved, a.State())

	_, err = a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Equal(t, int32(1), loc.fixCalls.Load())
}

func TestAcquireRejectsDegenerateFix(t *testing.T) {
	a := NewAcquirer(&countingLocator{granted: true, fixes: []geo.Coordinate{{}}})

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	_, ok := a.Fix()
	assert.False(t, ok)
}

func TestConcurrentAcquireSharesOutcome(t *testing.T) {
	loc := &countingLocator{granted: true, fixes: []geo.Coordinate{saoPaulo}, release: make(chan struct{})}
	a := NewAcquirer(loc)

	var wg sync.WaitGroup
	results := make([]geo.Coordinate, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			fix, err := a.Acquire(context.Background())
			assert.NoError(t, err)
			results[i] = fix
		}()
	}

	require.Eventually(t, func() bool { return a.State() == PermissionGranted }, time.Second, time.Millisecond)
	close(loc.release)
	wg.Wait()

	for _, fix := range results {
		assert.Equal(t, saoPaulo, fix)
	}
	assert.Equal(t, int32(1), loc.prompts.Load())
}

func TestWaitHonoursContext(t *testing.T) {
	loc := &countingLocator{granted: true, fixes: []geo.Coordinate{saoPaulo}, release: make(chan struct{})}
	a := NewAcquirer(loc)

	go func() { _, _ = a.Acquire(context.Background()) }()
	require.Eventually(t, func() bool { return a.State() == PermissionGranted }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(loc.release)
}

func TestStaticLocator(t *testing.T) {
	granted, err := Static{Fix: saoPaulo}.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = Static{Deny: true}.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	fix, err := Static{Fix: saoPaulo}.CurrentFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, fix)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "permission_denied", PermissionDenied.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Resolved.Terminal())
	assert.False(t, PermissionGranted.Terminal())
}
