package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"movieapp/internal/metrics"
)

// Probe reports network reachability on demand. Implementations must not
// have side effects beyond the check itself.
type Probe interface {
	IsConnected(ctx context.Context) bool
}

// StaticProbe always reports the same answer. Used for forced offline mode
// and in tests.
type StaticProbe bool

func (p StaticProbe) IsConnected(context.Context) bool {
	return bool(p)
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialProbe checks reachability by opening a TCP connection to a target
// (normally the catalog host). Answers are cached for ttl and concurrent
// checks share one dial.
type DialProbe struct {
	target  string
	timeout time.Duration
	ttl     time.Duration
	dial    dialFunc
	now     func() time.Time
	logger  *slog.Logger

	group     singleflight.Group
	mu        sync.Mutex
	checkedAt time.Time
	connected bool
}

type DialProbeOption func(*DialProbe)

func WithTimeout(timeout time.Duration) DialProbeOption {
	return func(p *DialProbe) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithTTL(ttl time.Duration) DialProbeOption {
	return func(p *DialProbe) {
		if ttl >= 0 {
			p.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) DialProbeOption {
	return func(p *DialProbe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func withDialer(dial dialFunc) DialProbeOption {
	return func(p *DialProbe) {
		p.dial = dial
	}
}

func withClock(now func() time.Time) DialProbeOption {
	return func(p *DialProbe) {
		p.now = now
	}
}

func NewDialProbe(target string, opts ...DialProbeOption) *DialProbe {
	dialer := &net.Dialer{}
	p := &DialProbe{
		target:  strings.TrimSpace(target),
		timeout: 2 * time.Second,
		ttl:     5 * time.Second,
		dial:    dialer.DialContext,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *DialProbe) IsConnected(ctx context.Context) bool {
	if p.target == "" {
		return false
	}
	if connected, ok := p.cached(); ok {
		return connected
	}

	// The dial is shared by every waiting caller and is detached from the
	// cancellation of whichever caller started it.
	result, _, _ := p.group.Do(p.target, func() (any, error) {
		connected, settled := p.check(context.WithoutCancel(ctx))
		if settled {
			p.mu.Lock()
			p.connected = connected
			p.checkedAt = p.now()
			p.mu.Unlock()
		}
		return connected, nil
	})
	return result.(bool)
}

func (p *DialProbe) cached() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkedAt.IsZero() || p.ttl == 0 {
		return false, false
	}
	if p.now().Sub(p.checkedAt) >= p.ttl {
		return false, false
	}
	return p.connected, true
}

// check dials the target once. settled is false when the dial was aborted by
// cancellation rather than answered by the network; such results are not cached.
func (p *DialProbe) check(ctx context.Context) (connected, settled bool) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", p.target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, false
		}
		metrics.ConnectivityChecksTotal.WithLabelValues("offline").Inc()
		p.logger.Debug("connectivity probe failed",
			slog.String("target", p.target),
			slog.String("error", err.Error()),
		)
		return false, true
	}
	_ = conn.Close()
	metrics.ConnectivityChecksTotal.WithLabelValues("online").Inc()
	return true, true
}
