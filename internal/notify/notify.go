// Package notify routes supervision events to notification channels.
// Critical events fan out to every enabled channel, warnings go to the
// primary channel, and info events are parked in a persisted digest queue
// and delivered later as one batched notification.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wardenhq/warden/internal/types"
)

// Event is one notification. Immutable once constructed.
type Event struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Severity types.Severity `json:"severity"`
	// Tag keys routing overrides; empty means severity-based routing.
	Tag  string         `json:"tag,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Adapter delivers events to one channel.
type Adapter interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, ev Event) error
}

// Delivery records one adapter's outcome for one event.
type Delivery struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// RouteResult is the router's answer for one event.
type RouteResult struct {
	// Queued is true when the event was parked in the digest queue instead
	// of being delivered.
	Queued     bool
	Deliveries []Delivery
}

// ChannelSettings configures one channel adapter.
type ChannelSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"` // ntfy
	URL     string `mapstructure:"url"`   // webhook
}

// Config configures a router.
type Config struct {
	// ProjectRoot anchors the persisted digest queue.
	ProjectRoot string
	// Channels maps channel name ("ntfy", "webhook") to its settings. The
	// built-in log channel needs no configuration and always exists.
	Channels map[string]ChannelSettings
	// DigestInterval is how long info events may age before a flush is due.
	DigestInterval time.Duration
	// Overrides maps an event tag to an explicit channel list, bypassing
	// severity-based routing.
	Overrides map[string][]string
	// HTTPTimeout bounds outbound channel requests. Defaults to 10s.
	HTTPTimeout time.Duration
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultDigestInterval applies when no interval is configured.
const DefaultDigestInterval = 30 * time.Minute

// Router delivers events per the routing rules. Safe for concurrent use.
type Router struct {
	adapters  []Adapter
	byName    map[string]Adapter
	primary   string
	overrides map[string][]string
	queue     *DigestQueue
	interval  time.Duration
	logger    *zap.Logger
}

// channelOrder fixes primary-channel selection: first enabled wins.
var channelOrder = []string{"ntfy", "webhook"}

// NewRouter builds a router from configuration. The built-in log adapter is
// always instantiated; it is also the primary when nothing else is enabled.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.DigestInterval
	if interval <= 0 {
		interval = DefaultDigestInterval
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	adapters := []Adapter{newLogAdapter(logger)}
	for _, name := range channelOrder {
		settings, ok := cfg.Channels[name]
		if !ok {
			continue
		}
		switch name {
		case "ntfy":
			adapters = append(adapters, newNtfyAdapter(settings, timeout))
		case "webhook":
			adapters = append(adapters, newWebhookAdapter(settings, timeout))
		}
	}

	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}

	primary := "log"
	for _, name := range channelOrder {
		if a, ok := byName[name]; ok && a.Enabled() {
			primary = name
			break
		}
	}

	return &Router{
		adapters:  adapters,
		byName:    byName,
		primary:   primary,
		overrides: cfg.Overrides,
		queue:     NewDigestQueue(cfg.ProjectRoot),
		interval:  interval,
		logger:    logger,
	}
}

// Primary returns the primary channel's name.
func (r *Router) Primary() string {
	return r.primary
}

// Route applies the routing decision to one event:
// tag override, then critical fan-out, then warning to primary, then info to
// the digest queue.
func (r *Router) Route(ctx context.Context, ev Event) RouteResult {
	if channels, ok := r.overrides[ev.Tag]; ok && ev.Tag != "" {
		return RouteResult{Deliveries: r.dispatch(ctx, ev, channels)}
	}

	switch ev.Severity {
	case types.SeverityCritical:
		return RouteResult{Deliveries: r.dispatch(ctx, ev, r.enabledChannels())}
	case types.SeverityWarning:
		return RouteResult{Deliveries: r.dispatch(ctx, ev, []string{r.primary})}
	default:
		if err := r.queue.Enqueue(ev); err != nil {
			// Queue trouble must not lose the event: fall back to the
			// primary channel.
			r.logger.Warn("digest enqueue failed, delivering directly", zap.Error(err))
			return RouteResult{Deliveries: r.dispatch(ctx, ev, []string{r.primary})}
		}
		return RouteResult{Queued: true}
	}
}

// enabledChannels lists every channel whose adapter reports enabled.
func (r *Router) enabledChannels() []string {
	var out []string
	for _, a := range r.adapters {
		if a.Enabled() {
			out = append(out, a.Name())
		}
	}
	return out
}

// dispatch attempts delivery on each named channel. Outcomes are isolated: a
// failing or disabled adapter never stops the rest, and nothing raises past
// the router.
func (r *Router) dispatch(ctx context.Context, ev Event, channels []string) []Delivery {
	results := make([]Delivery, len(channels))
	var g errgroup.Group
	for i, name := range channels {
		g.Go(func() error {
			results[i] = r.deliverOne(ctx, ev, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Router) deliverOne(ctx context.Context, ev Event, channel string) Delivery {
	adapter, ok := r.byName[channel]
	if !ok {
		return Delivery{Channel: channel, Error: "unknown channel"}
	}
	if !adapter.Enabled() {
		return Delivery{Channel: channel, Error: "channel disabled"}
	}
	if err := safeSend(ctx, adapter, ev); err != nil {
		r.logger.Warn("notification delivery failed",
			zap.String("channel", channel), zap.String("title", ev.Title), zap.Error(err))
		return Delivery{Channel: channel, Error: err.Error()}
	}
	return Delivery{Channel: channel, Delivered: true}
}

// safeSend contains adapter panics so one bad channel cannot take down the
// router.
func safeSend(ctx context.Context, adapter Adapter, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &adapterPanicError{channel: adapter.Name(), value: rec}
		}
	}()
	return adapter.Send(ctx, ev)
}

type adapterPanicError struct {
	channel string
	value   any
}

func (e *adapterPanicError) Error() string {
	return "adapter panic on channel " + e.channel
}

// Registry hands out one router per project root with an explicit lifecycle.
// The composing process owns it; there is no package-level singleton.
type Registry struct {
	mu      sync.Mutex
	routers map[string]*Router
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routers: make(map[string]*Router)}
}

// Get returns the router for a project root, creating it from cfg on first
// use.
func (reg *Registry) Get(projectRoot string, cfg Config) *Router {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.routers[projectRoot]; ok {
		return r
	}
	cfg.ProjectRoot = projectRoot
	r := NewRouter(cfg)
	reg.routers[projectRoot] = r
	return r
}

// Reset drops the router for a project root; the next Get recreates it.
func (reg *Registry) Reset(projectRoot string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.routers, projectRoot)
}
