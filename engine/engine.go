// Package engine provides the external-collaborator glue described by the
// AT transceiver design as "Engine": it owns exactly one transceiver
// instance, feeds it from a transport, and runs a background URC listener.
// The real board-support/UART-ISR plumbing stays out of scope, as the
// design requires; this package's feed loop is the portable stand-in for
// that ISR, driven by any io.Reader.
package engine

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/daedaluz/atmodem/attransceiver"
)

// ErrNoTransport is returned by New when transport is nil.
var ErrNoTransport = errors.New("engine: transport must not be nil")

// Engine owns a single Transceiver and the goroutines that keep it fed and
// that listen for URCs. Construct with New; release with Close.
type Engine struct {
	t         *attransceiver.Transceiver
	transport io.ReadWriter
	logger    *zap.Logger

	echoMode atomic.Bool

	urcHandler   UrcHandler
	pollInterval time.Duration
	chunkSize    int
	txCapacity   int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New allocates the Rx ring, initializes the transceiver over transport,
// and starts the feed loop (and, if a URC handler was supplied,
// the URC loop). If any step fails, everything already started is unwound
// before returning the error — mirroring the original Engine_Initialize's
// all-or-nothing behaviour.
func New(transport io.ReadWriter, opts ...Option) (*Engine, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}

	rxBuf := make([]byte, o.RxBufferSize)
	e := &Engine{
		transport:    transport,
		logger:       o.Logger,
		urcHandler:   o.UrcHandler,
		pollInterval: o.URCPollInterval,
		chunkSize:    o.FeedChunkSize,
		txCapacity:   o.TxBufferSize,
		stopCh:       make(chan struct{}),
	}
	e.echoMode.Store(o.EchoMode)

	t, err := attransceiver.Initialize(rxBuf, e.writeFunc)
	if err != nil {
		return nil, err
	}
	e.t = t

	e.wg.Add(1)
	go e.feedLoop()

	if e.urcHandler != nil {
		e.wg.Add(1)
		go e.urcLoop()
	}
	return e, nil
}

func (e *Engine) writeFunc(data []byte) (int, error) {
	return e.transport.Write(data)
}

// SetEchoMode toggles the flag Open consults when preparing a write
// sequence. It reflects the modem's current echo configuration, not a
// property of the transceiver itself.
func (e *Engine) SetEchoMode(enabled bool) { e.echoMode.Store(enabled) }

// GetEchoMode reports the current echo-mode flag.
func (e *Engine) GetEchoMode() bool { return e.echoMode.Load() }

// Open acquires the transceiver lock and prepares a NoBuffer write sequence
// whose options reflect the current echo mode (adding NoEcho when echo
// mode is disabled at the modem). The returned Transceiver is ready for a
// command/response exchange; call EndSession when done.
func (e *Engine) Open() (*attransceiver.Transceiver, error) {
	if err := e.t.Lock(); err != nil {
		return nil, err
	}
	opts := attransceiver.NoBuffer
	if !e.echoMode.Load() {
		opts |= attransceiver.NoEcho
	}
	if err := e.t.PrepareWrite(opts, nil); err != nil {
		_ = e.t.Unlock()
		return nil, err
	}
	return e.t, nil
}

// EndSession releases the lock acquired by Open.
func (e *Engine) EndSession() error {
	return e.t.Unlock()
}

// Transceiver returns the underlying transceiver without acquiring the
// lock. Most callers should use Open instead; this exists for tests and
// for URC handlers that already hold the lock via the URC loop.
func (e *Engine) Transceiver() *attransceiver.Transceiver { return e.t }

// feedLoop is the portable stand-in for the UART-ISR-driven feed path: it
// reads from transport and calls Feed. It returns when transport.Read
// errors (including on Close, which closes the transport if possible).
func (e *Engine) feedLoop() {
	defer e.wg.Done()
	buf := make([]byte, e.chunkSize)
	for {
		n, err := e.transport.Read(buf)
		if n > 0 {
			if fed, ferr := e.t.Feed(buf[:n]); ferr != nil {
				e.logger.Warn("ring buffer overflow on feed", zap.Error(ferr), zap.Int("dropped", n-fed))
			}
		}
		if err != nil {
			select {
			case <-e.stopCh:
				return
			default:
			}
			if !errors.Is(err, io.EOF) {
				e.logger.Warn("transport read failed", zap.Error(err))
			}
			return
		}
		select {
		case <-e.stopCh:
			return
		default:
		}
	}
}

// urcLoop implements "whenever the lock is free and ring data is
// available, acquire the lock and dispatch to the URC handler": it polls
// TryLock with a short timeout rather than busy-spinning, and if it wins
// the lock but finds nothing pending, releases it immediately and waits one
// poll interval before trying again.
func (e *Engine) urcLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}
		if err := e.t.TryLock(e.pollInterval); err != nil {
			continue
		}
		if e.t.Pending() == 0 {
			_ = e.t.Unlock()
			select {
			case <-e.stopCh:
				return
			case <-time.After(e.pollInterval):
			}
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Warn("urc handler panicked", zap.Any("recovered", r))
				}
			}()
			e.urcHandler(e.t)
		}()
		_ = e.t.Unlock()
	}
}

// Close stops the feed and URC loops, deinitializes the transceiver, and
// closes the underlying transport if it implements io.Closer. It is safe
// to call once; subsequent calls are no-ops.
func (e *Engine) Close() error {
	var closeErr error
	e.stopOnce.Do(func() {
		close(e.stopCh)
		if closer, ok := e.transport.(io.Closer); ok {
			closeErr = closer.Close()
		}
		e.wg.Wait()
		if err := e.t.Deinitialize(); err != nil && closeErr == nil {
			closeErr = err
		}
	})
	return closeErr
}
