// conn_pool.go
// -------------
// This file defines the ConnPool type, which owns every transport connection
// the client holds against the upstream host. A connection is either in use by
// exactly one request attempt or sitting in the idle set; the pool never lets
// in-use plus idle exceed MaxConnections.
//
// Responsibilities:
// - Handing out idle connections, dialing new ones while under the cap.
// - Suspending acquirers at capacity until a connection is released or closed.
// - Lazily discarding idle connections older than the keepalive expiry.
// - Closing everything down once on Close().
package hyperbridge

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// ErrPoolClosed is returned by Acquire after the pool has been shut down.
var ErrPoolClosed = errors.New("hyperbridge: connection pool is closed")

// PoolConn is a pooled transport connection. The buffered reader lives with
// the connection so pipelined response bytes survive between reuses.
type PoolConn struct {
	net.Conn
	br        *bufio.Reader
	createdAt time.Time
	lastUsed  time.Time
}

func newPoolConn(conn net.Conn) *PoolConn {
	now := time.Now()
	return &PoolConn{
		Conn:      conn,
		br:        bufio.NewReader(conn),
		createdAt: now,
		lastUsed:  now,
	}
}

func (pc *PoolConn) reader() *bufio.Reader { return pc.br }

// ConnPool manages reusable connections to the single upstream host.
type ConnPool struct {
	dial            DialFunc
	maxConns        int
	keepaliveExpiry time.Duration
	logger          hclog.Logger

	idle      chan *PoolConn // capacity = max keepalive connections
	slotFreed chan struct{}  // wakes acquirers when a live connection goes away

	mu      sync.Mutex
	numOpen int
	closed  bool
}

// NewConnPool builds a pool. maxConns caps live connections, maxIdle caps how
// many of them are kept around between requests.
func NewConnPool(dial DialFunc, maxConns, maxIdle int, keepaliveExpiry time.Duration, logger hclog.Logger) *ConnPool {
	if maxIdle > maxConns {
		maxIdle = maxConns
	}
	return &ConnPool{
		dial:            dial,
		maxConns:        maxConns,
		keepaliveExpiry: keepaliveExpiry,
		logger:          logger.Named("pool"),
		idle:            make(chan *PoolConn, maxIdle),
		slotFreed:       make(chan struct{}, maxConns),
	}
}

// Acquire returns a connection for exclusive use. It prefers an unexpired idle
// connection, dials a new one while under the cap, and otherwise suspends
// until a connection is released or its slot is freed.
func (p *ConnPool) Acquire(ctx context.Context) (*PoolConn, error) {
	for {
		select {
		case pc := <-p.idle:
			if p.expired(pc) {
				p.logger.Debug("evicting expired idle connection", "idle_for", time.Since(pc.lastUsed))
				p.closeConn(pc)
				continue
			}
			return pc, nil
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if p.numOpen < p.maxConns {
			p.numOpen++
			open := p.numOpen
			p.mu.Unlock()

			conn, err := p.dial(ctx)
			if err != nil {
				p.freeSlot()
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, newConnectionError("dial upstream", err)
			}
			p.logger.Debug("dialed new connection", "open", open)
			return newPoolConn(conn), nil
		}
		p.mu.Unlock()

		// At capacity: wait for a released connection or a freed slot.
		select {
		case pc := <-p.idle:
			if p.expired(pc) {
				p.closeConn(pc)
				continue
			}
			return pc, nil
		case <-p.slotFreed:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands a healthy connection back for reuse. When the idle set is full
// or the pool is closed, the connection is closed instead.
func (p *ConnPool) Release(pc *PoolConn) {
	if pc == nil {
		return
	}
	pc.lastUsed = time.Now()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.closeConn(pc)
		return
	}

	select {
	case p.idle <- pc:
	default:
		p.closeConn(pc)
	}
}

// Discard closes a connection whose state is unknown (timeout, transport
// failure, non-reusable response) and frees its slot.
func (p *ConnPool) Discard(pc *PoolConn) {
	if pc == nil {
		return
	}
	p.closeConn(pc)
}

// NumOpen reports live connections, in use plus idle.
func (p *ConnPool) NumOpen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numOpen
}

// Close shuts the pool down and closes all idle connections. Connections still
// in flight are closed as they are released.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var result *multierror.Error
	for {
		select {
		case pc := <-p.idle:
			if err := pc.Conn.Close(); err != nil {
				result = multierror.Append(result, err)
			}
			p.freeSlot()
		default:
			return result.ErrorOrNil()
		}
	}
}

func (p *ConnPool) expired(pc *PoolConn) bool {
	return p.keepaliveExpiry > 0 && time.Since(pc.lastUsed) > p.keepaliveExpiry
}

func (p *ConnPool) closeConn(pc *PoolConn) {
	_ = pc.Conn.Close()
	p.freeSlot()
}

func (p *ConnPool) freeSlot() {
	p.mu.Lock()
	p.numOpen--
	p.mu.Unlock()
	select {
	case p.slotFreed <- struct{}{}:
	default:
	}
}
