package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/daedaluz/atmodem/attransceiver"
)

// UrcHandler interprets unsolicited data. It is called with a locked,
// ready-to-read transceiver, and must not retain t beyond its own lifetime.
type UrcHandler func(t *attransceiver.Transceiver)

// Options configures an Engine. Use the With* constructors rather than
// constructing Options directly.
type Options struct {
	RxBufferSize    int
	TxBufferSize    int
	EchoMode        bool
	Logger          *zap.Logger
	UrcHandler      UrcHandler
	URCPollInterval time.Duration
	FeedChunkSize   int
}

var defaultOptions = Options{
	RxBufferSize:    1024,
	TxBufferSize:    256,
	EchoMode:        true,
	Logger:          zap.NewNop(),
	URCPollInterval: 50 * time.Millisecond,
	FeedChunkSize:   256,
}

type Option func(*Options)

// WithRxBufferSize sets the capacity of the Rx ring buffer.
func WithRxBufferSize(n int) Option {
	return func(o *Options) { o.RxBufferSize = n }
}

// WithTxBufferSize records a Tx buffer capacity on the Engine. Open always
// prepares NoBuffer sessions, so the Engine allocates no Tx buffer and does
// not otherwise use this value.
func WithTxBufferSize(n int) Option {
	return func(o *Options) { o.TxBufferSize = n }
}

// WithEchoMode sets the initial echo-mode flag consulted by Open.
func WithEchoMode(enabled bool) Option {
	return func(o *Options) { o.EchoMode = enabled }
}

// WithLogger sets the structured logger used for feed/URC diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithURCHandler installs the callback the URC loop dispatches to whenever
// the lock is free and Rx data is pending. Omitting this option leaves the
// Engine without a URC loop at all.
func WithURCHandler(h UrcHandler) Option {
	return func(o *Options) { o.UrcHandler = h }
}

// WithURCPollInterval sets how long the URC loop waits in TryLock while a
// command session holds the lock, and how long it pauses before retrying
// when it finds the lock free but no Rx data pending.
func WithURCPollInterval(d time.Duration) Option {
	return func(o *Options) { o.URCPollInterval = d }
}

// WithFeedChunkSize sets the read buffer size used by the feed loop.
func WithFeedChunkSize(n int) Option {
	return func(o *Options) { o.FeedChunkSize = n }
}
