package hyperbridge

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// trackingDialer hands out pipe connections and records how many are live at
// any moment.
type trackingDialer struct {
	mu      sync.Mutex
	dials   int
	live    int
	maxLive int
}

func (d *trackingDialer) dial(ctx context.Context) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	d.mu.Unlock()

	client, server := net.Pipe()
	go func() {
		// Keep the peer open so Close on the pooled side is the only way a
		// connection dies.
		buf := make([]byte, 1)
		for {
			if _, err := server.Read(buf); err != nil {
				server.Close()
				return
			}
		}
	}()
	return &trackedConn{Conn: client, dialer: d}, nil
}

type trackedConn struct {
	net.Conn
	dialer *trackingDialer
	once   sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.dialer.mu.Lock()
		c.dialer.live--
		c.dialer.mu.Unlock()
	})
	return c.Conn.Close()
}

func (d *trackingDialer) stats() (dials, live, maxLive int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials, d.live, d.maxLive
}

func newTestPool(d *trackingDialer, maxConns, maxIdle int, expiry time.Duration) *ConnPool {
	return NewConnPool(d.dial, maxConns, maxIdle, expiry, hclog.NewNullLogger())
}

func TestConnPool_NeverExceedsMaxConnections(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 5, 5, time.Minute)
	defer pool.Close()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			pc, err := pool.Acquire(context.Background())
			if err != nil {
				return err
			}
			time.Sleep(2 * time.Millisecond)
			pool.Release(pc)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	_, _, maxLive := dialer.stats()
	assert.LessOrEqual(t, maxLive, 5, "live connections exceeded the cap")
	assert.LessOrEqual(t, pool.NumOpen(), 5)
}

func TestConnPool_ReusesIdleConnection(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 4, 4, time.Minute)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(pc)

	pc2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(pc2)

	dials, _, _ := dialer.stats()
	assert.Equal(t, 1, dials)
	assert.Same(t, pc, pc2)
}

func TestConnPool_ExpiredIdleConnectionNotReturned(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 4, 4, 20*time.Millisecond)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(pc)

	time.Sleep(50 * time.Millisecond)

	pc2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(pc2)

	assert.NotSame(t, pc, pc2)
	dials, live, _ := dialer.stats()
	assert.Equal(t, 2, dials)
	assert.Equal(t, 1, live, "expired connection should have been closed")
}

func TestConnPool_ReleaseBeyondKeepaliveCloses(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 2, 1, time.Minute)
	defer pool.Close()

	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Release(a)
	pool.Release(b) // idle set is full, must close

	_, live, _ := dialer.stats()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, pool.NumOpen())
}

func TestConnPool_AcquireBlocksAtCapacity(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 1, 1, time.Minute)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan *PoolConn, 1)
	go func() {
		pc2, err := pool.Acquire(context.Background())
		if err == nil {
			acquired <- pc2
		}
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned while the pool was at capacity")
	case <-time.After(30 * time.Millisecond):
	}

	pool.Release(pc)

	select {
	case pc2 := <-acquired:
		pool.Release(pc2)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not wake up after a release")
	}
}

func TestConnPool_AcquireHonorsContextDeadline(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 1, 1, time.Minute)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(pc)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnPool_DiscardFreesSlot(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 1, 1, time.Minute)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Discard(pc)

	assert.Equal(t, 0, pool.NumOpen())

	pc2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(pc2)

	dials, _, _ := dialer.stats()
	assert.Equal(t, 2, dials)
}

func TestConnPool_CloseClosesIdleAndRefusesAcquire(t *testing.T) {
	dialer := &trackingDialer{}
	pool := newTestPool(dialer, 2, 2, time.Minute)

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(pc)

	require.NoError(t, pool.Close())

	_, live, _ := dialer.stats()
	assert.Equal(t, 0, live)

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestConnPool_DialFailureIsConnectionError(t *testing.T) {
	dial := func(ctx context.Context) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Err: context.DeadlineExceeded}
	}
	pool := NewConnPool(dial, 1, 1, time.Minute, hclog.NewNullLogger())
	defer pool.Close()

	_, err := pool.Acquire(context.Background())
	ne, ok := AsNormalizedError(err)
	require.True(t, ok)
	assert.Equal(t, KindConnection, ne.Kind)
	assert.Equal(t, 0, pool.NumOpen(), "failed dial must not leak a slot")
}
