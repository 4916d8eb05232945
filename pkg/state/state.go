// Package state holds the latest price updates received from each upstream source.
package state

import "sync"

// Source name constants. These match the source_name values accepted in the
// price waterfall configuration.
const (
	HLOracle = "hl_oracle"
	HLMark   = "hl_mark"
	HLMid    = "hl_mid"
	Lazer    = "lazer"
	Hermes   = "hermes"
	Seda     = "seda"
	SedaLast = "seda_last"
	SedaEMA  = "seda_ema"
)

// PriceUpdate is a single price observation from a data source. Immutable once
// constructed.
//
// Price is kept as the decimal string the source delivered; scaling and
// rounding happen at resolution time. Timestamp is Unix seconds. SessionFlag
// is set by session-aware sources (SEDA) when the underlying market is closed.
type PriceUpdate struct {
	Price       string
	Timestamp   float64
	SessionFlag bool
}

// Age returns how old this update is, in seconds, relative to now.
func (u PriceUpdate) Age(now float64) float64 {
	return now - u.Timestamp
}

// PriceSourceState stores the latest update per key for one upstream source.
//
// Writers are the source adapters (one goroutine per connection or feed),
// the reader is the resolver. Writes are last-write-wins with no ordering
// check; entries are never deleted. Staleness is the caller's concern.
type PriceSourceState struct {
	name string

	mu    sync.RWMutex
	state map[string]PriceUpdate
}

// New creates an empty state store for the named source.
func New(name string) *PriceSourceState {
	return &PriceSourceState{
		name:  name,
		state: make(map[string]PriceUpdate),
	}
}

// Name returns the source name this store belongs to.
func (s *PriceSourceState) Name() string {
	return s.name
}

// Put stores the latest update for a key, replacing any prior value.
func (s *PriceSourceState) Put(key string, update PriceUpdate) {
	s.mu.Lock()
	s.state[key] = update
	s.mu.Unlock()
}

// Get returns the latest update for a key, if any.
func (s *PriceSourceState) Get(key string) (PriceUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	update, ok := s.state[key]
	return update, ok
}

// Len returns the number of keys currently stored.
func (s *PriceSourceState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Set bundles one PriceSourceState per logical source. It is constructed once
// at startup and shared by reference between the adapters and the resolver.
type Set struct {
	HLOracle *PriceSourceState
	HLMark   *PriceSourceState
	HLMid    *PriceSourceState
	Lazer    *PriceSourceState
	Hermes   *PriceSourceState
	Seda     *PriceSourceState
	SedaLast *PriceSourceState
	SedaEMA  *PriceSourceState
}

// NewSet creates the full set of per-source state stores.
func NewSet() *Set {
	return &Set{
		HLOracle: New(HLOracle),
		HLMark:   New(HLMark),
		HLMid:    New(HLMid),
		Lazer:    New(Lazer),
		Hermes:   New(Hermes),
		Seda:     New(Seda),
		SedaLast: New(SedaLast),
		SedaEMA:  New(SedaEMA),
	}
}

// ByName returns the state store for a source name, or nil if unknown.
func (s *Set) ByName(name string) *PriceSourceState {
	switch name {
	case HLOracle:
		return s.HLOracle
	case HLMark:
		return s.HLMark
	case HLMid:
		return s.HLMid
	case Lazer:
		return s.Lazer
	case Hermes:
		return s.Hermes
	case Seda:
		return s.Seda
	case SedaLast:
		return s.SedaLast
	case SedaEMA:
		return s.SedaEMA
	default:
		return nil
	}
}
