package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// Registry errors
var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy already registered")
	ErrInvalidDescriptor = errors.New("invalid strategy descriptor")
)

// Class is the behavioural family a strategy belongs to.
type Class string

const (
	ClassTrendFollowing Class = "trend_following"
	ClassMeanReversion  Class = "mean_reversion"
	ClassBreakout       Class = "breakout"
	ClassMomentum       Class = "momentum"
	ClassScalping       Class = "scalping"
)

// PreferredRegime is the market regime a strategy is built for.
type PreferredRegime string

const (
	PreferTrending PreferredRegime = "trending"
	PreferRanging  PreferredRegime = "ranging"
	PreferBoth     PreferredRegime = "both"
)

// Signal is the desired exposure: 1 long, -1 short, 0 flat.
type Signal int

const (
	Short Signal = -1
	Flat  Signal = 0
	Long  Signal = 1
)

// Params are numeric strategy parameters keyed by name.
type Params map[string]float64

// Get returns the value for key, or def when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// SignalFunc evaluates the bars seen so far and returns the desired exposure.
type SignalFunc func(bars []market.Bar, params Params) Signal

// Descriptor is the capability object stored in the registry.
type Descriptor struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Class           Class           `json:"class"`
	PreferredRegime PreferredRegime `json:"preferred_regime"`
	DefaultParams   Params          `json:"default_params"`
	// WarmupBars is the history a signal needs before it can trade.
	WarmupBars int        `json:"warmup_bars"`
	Signal     SignalFunc `json:"-"`
}

func (d Descriptor) validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}
	if d.Signal == nil {
		return fmt.Errorf("%w: %s has no signal function", ErrInvalidDescriptor, d.ID)
	}
	switch d.PreferredRegime {
	case PreferTrending, PreferRanging, PreferBoth:
	default:
		return fmt.Errorf("%w: %s has preferred regime %q", ErrInvalidDescriptor, d.ID, d.PreferredRegime)
	}
	return nil
}

// Registry maps strategy ids to descriptors. It is populated at startup and
// safe for concurrent lookups afterwards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, d.ID)
	}
	if d.DefaultParams == nil {
		d.DefaultParams = Params{}
	}
	r.descriptors[d.ID] = d
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	return d, nil
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
