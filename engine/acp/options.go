package acp

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Default registry configuration values.
const (
	defaultGracePeriod    = 5 * time.Second
	defaultMaxMessageSize = 4 << 20 // 4 MB, max JSON-RPC line size accepted from the agent
	outboxSize            = 256     // queued outbound frames before senders block
)

// Options holds resolved construction-time configuration for a Registry.
type Options struct {
	// Logger receives diagnostics. Each session derives a child logger
	// tagged with its name. Defaults to a logger that discards output.
	Logger *log.Logger

	// GracePeriod bounds each stop phase: waiting for the agent to exit
	// after stdin closes, then after SIGTERM, before SIGKILL.
	GracePeriod time.Duration

	// HandshakeTimeout bounds initialize + session/new + set_mode.
	// Zero means no deadline.
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum inbound JSON-RPC line size in bytes.
	// Longer lines are dropped.
	MaxMessageSize int

	// DefaultOutputByteLimit applies to terminal/create requests that do
	// not carry their own outputByteLimit. Zero means unlimited.
	DefaultOutputByteLimit int

	// ClientName and ClientVersion are sent as clientInfo in initialize.
	ClientName    string
	ClientVersion string
}

// Option configures a Registry at construction time.
type Option func(*Options)

// WithLogger sets the diagnostics logger. A nil logger is ignored.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithGracePeriod sets how long each stop phase waits before escalating.
// Values <= 0 are ignored.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.GracePeriod = d
		}
	}
}

// WithHandshakeTimeout sets a deadline for the background handshake.
// Values <= 0 are ignored.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HandshakeTimeout = d
		}
	}
}

// WithMaxMessageSize sets the maximum inbound message size in bytes.
// Values <= 0 are ignored.
func WithMaxMessageSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxMessageSize = n
		}
	}
}

// WithDefaultOutputByteLimit caps virtual terminal output when the agent
// does not request a limit. Values <= 0 are ignored.
func WithDefaultOutputByteLimit(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.DefaultOutputByteLimit = n
		}
	}
}

// WithClientInfo overrides the clientInfo sent during initialize.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		if name != "" {
			o.ClientName = name
		}
		if version != "" {
			o.ClientVersion = version
		}
	}
}

func resolveOptions(opts ...Option) Options {
	o := Options{
		GracePeriod:    defaultGracePeriod,
		MaxMessageSize: defaultMaxMessageSize,
		ClientName:     clientName,
		ClientVersion:  clientVersion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}
