package poll

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// State is the lifecycle of a single poll chain.
type State int

const (
	Idle State = iota
	Polling
	Stopped
	Errored
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// Fetch loads the current value for key.
type Fetch[T any] func(ctx context.Context, key string) (T, error)

// Predicate decides from a fetched value whether the chain keeps polling.
type Predicate[T any] func(value T) bool

// Observer receives chain bookkeeping, typically metrics.
type Observer interface {
	ChainsChanged(registry string, active int)
	Fetched(registry string, err error)
}

// Options configure a Registry.
type Options struct {
	Name     string
	Interval time.Duration
	Observer Observer
}

// DefaultInterval is used when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

var registrySeq atomic.Uint64

// Result is a fetch outcome for a live chain.
type Result[T any] struct {
	Key   string
	Value T
	Err   error
	// Done is set when this was the chain's last fetch.
	Done bool
}

// Registry owns a set of independent poll chains. It must only be used from
// the Bubble Tea update loop; fetches run as commands and report back
// through Update.
type Registry[T any] struct {
	id          uint64
	name        string
	ctx         context.Context
	fetch       Fetch[T]
	keepPolling Predicate[T]
	interval    time.Duration
	observer    Observer

	gen    uint64
	chains map[string]*chain
}

type chain struct {
	gen    uint64
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

type fetchedMsg[T any] struct {
	owner uint64
	key   string
	gen   uint64
	value T
	err   error
}

type tickMsg struct {
	owner uint64
	key   string
	gen   uint64
}

// New creates a registry. ctx bounds every fetch it issues.
func New[T any](ctx context.Context, fetch Fetch[T], keepPolling Predicate[T], opts Options) *Registry[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry[T]{
		id:          registrySeq.Add(1),
		name:        opts.Name,
		ctx:         ctx,
		fetch:       fetch,
		keepPolling: keepPolling,
		interval:    interval,
		observer:    opts.Observer,
		chains:      make(map[string]*chain),
	}
}

// Interval returns the delay between a result and the next fetch.
func (r *Registry[T]) Interval() time.Duration {
	return r.interval
}

// Start begins polling key. It is a no-op while a chain for key is polling;
// a stopped or errored chain is replaced by a fresh one.
func (r *Registry[T]) Start(key string) tea.Cmd {
	if c, ok := r.chains[key]; ok {
		if c.state == Polling {
			return nil
		}
		c.cancel()
	}
	r.gen++
	ctx, cancel := context.WithCancel(r.ctx)
	c := &chain{gen: r.gen, state: Polling, ctx: ctx, cancel: cancel}
	r.chains[key] = c
	r.notifyChains()
	return r.fetchCmd(key, c)
}

// Stop tears down the chain for key. Pending ticks and in-flight results for
// it are dropped when they arrive.
func (r *Registry[T]) Stop(key string) bool {
	c, ok := r.chains[key]
	if !ok {
		return false
	}
	c.cancel()
	delete(r.chains, key)
	r.notifyChains()
	return true
}

// StopAll tears down every chain.
func (r *Registry[T]) StopAll() {
	if len(r.chains) == 0 {
		return
	}
	for key, c := range r.chains {
		c.cancel()
		delete(r.chains, key)
	}
	r.notifyChains()
}

// Retain keeps chains for keys, tears down the rest and starts chains for
// keys that have none. Stopped and errored chains are left as they are.
func (r *Registry[T]) Retain(keys []string) tea.Cmd {
	r.teardownExcept(keys)
	var cmds []tea.Cmd
	for _, key := range keys {
		if _, ok := r.chains[key]; ok {
			continue
		}
		cmds = append(cmds, r.Start(key))
	}
	return tea.Batch(cmds...)
}

// Reset is Retain that also restarts stopped and errored chains. Use it when
// the values behind keys were just refreshed wholesale.
func (r *Registry[T]) Reset(keys []string) tea.Cmd {
	r.teardownExcept(keys)
	var cmds []tea.Cmd
	for _, key := range keys {
		if cmd := r.Start(key); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (r *Registry[T]) teardownExcept(keys []string) {
	want := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		want[key] = struct{}{}
	}
	changed := false
	for key, c := range r.chains {
		if _, ok := want[key]; ok {
			continue
		}
		c.cancel()
		delete(r.chains, key)
		changed = true
	}
	if changed {
		r.notifyChains()
	}
}

// State reports the chain state for key, Idle when unknown.
func (r *Registry[T]) State(key string) State {
	if c, ok := r.chains[key]; ok {
		return c.state
	}
	return Idle
}

// Active returns the keys currently polling, sorted.
func (r *Registry[T]) Active() []string {
	keys := make([]string, 0, len(r.chains))
	for key, c := range r.chains {
		if c.state == Polling {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of polling chains.
func (r *Registry[T]) Len() int {
	n := 0
	for _, c := range r.chains {
		if c.state == Polling {
			n++
		}
	}
	return n
}

// Update consumes messages produced by this registry. ok is true when res
// carries a result for a live chain; stale and foreign messages yield false.
func (r *Registry[T]) Update(msg tea.Msg) (res Result[T], cmd tea.Cmd, ok bool) {
	switch msg := msg.(type) {
	case fetchedMsg[T]:
		if msg.owner != r.id {
			return res, nil, false
		}
		c := r.live(msg.key, msg.gen)
		if c == nil {
			return res, nil, false
		}
		if r.observer != nil {
			r.observer.Fetched(r.name, msg.err)
		}
		res = Result[T]{Key: msg.key, Value: msg.value, Err: msg.err}
		if msg.err != nil {
			r.finish(c, Errored)
			res.Done = true
			return res, nil, true
		}
		if r.keepPolling != nil && r.keepPolling(msg.value) {
			return res, r.tickCmd(msg.key, c.gen), true
		}
		r.finish(c, Stopped)
		res.Done = true
		return res, nil, true

	case tickMsg:
		if msg.owner != r.id {
			return res, nil, false
		}
		c := r.live(msg.key, msg.gen)
		if c == nil {
			return res, nil, false
		}
		return res, r.fetchCmd(msg.key, c), false
	}
	return res, nil, false
}

func (r *Registry[T]) live(key string, gen uint64) *chain {
	c, ok := r.chains[key]
	if !ok || c.gen != gen || c.state != Polling {
		return nil
	}
	return c
}

func (r *Registry[T]) finish(c *chain, state State) {
	c.state = state
	c.cancel()
	r.notifyChains()
}

func (r *Registry[T]) notifyChains() {
	if r.observer != nil {
		r.observer.ChainsChanged(r.name, r.Len())
	}
}

func (r *Registry[T]) fetchCmd(key string, c *chain) tea.Cmd {
	fetch, ctx, owner, gen := r.fetch, c.ctx, r.id, c.gen
	return func() tea.Msg {
		value, err := fetch(ctx, key)
		return fetchedMsg[T]{owner: owner, key: key, gen: gen, value: value, err: err}
	}
}

func (r *Registry[T]) tickCmd(key string, gen uint64) tea.Cmd {
	owner := r.id
	return tea.Tick(r.interval, func(time.Time) tea.Msg {
		return tickMsg{owner: owner, key: key, gen: gen}
	})
}
