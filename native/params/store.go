package params

import (
	"fmt"
	"strings"

	"rebasevault/core/events"
	nativecommon "rebasevault/native/common"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Pauses is the set of module switches an administrator can flip at runtime.
type Pauses struct {
	Rebase bool
	Bank   bool
	AMM    bool
}

// IsPaused implements nativecommon.PauseView.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "rebase":
		return p.Rebase
	case "bank":
		return p.Bank
	case "amm":
		return p.AMM
	}
	return false
}

// FromView snapshots a pause view into the switch set.
func FromView(view nativecommon.PauseView) Pauses {
	if view == nil {
		return Pauses{}
	}
	return Pauses{
		Rebase: view.IsPaused("rebase"),
		Bank:   view.IsPaused("bank"),
		AMM:    view.IsPaused("amm"),
	}
}

// Store provides typed accessors for administrator-controlled parameters.
type Store struct {
	state    StoreState
	defaults nativecommon.PauseView
	emitter  events.Emitter
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend. defaults answers until switches have been persisted.
func NewStore(state StoreState, defaults nativecommon.PauseView) *Store {
	return &Store{state: state, defaults: defaults, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the sink for pause updates.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if s == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	s.emitter = emitter
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPauses persists the supplied switches. Once stored they replace the
// configured defaults entirely.
func (s *Store) SetPauses(pauses Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if err := state.KVPut([]byte(ParamsKeyPauses), pauses); err != nil {
		return fmt.Errorf("params: store pauses: %w", err)
	}
	s.emitter.Emit(events.PausesUpdated{Rebase: pauses.Rebase, Bank: pauses.Bank, AMM: pauses.AMM})
	return nil
}

// Pauses loads the persisted switches, falling back to the defaults when
// none were stored.
func (s *Store) Pauses() (Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return Pauses{}, err
	}
	var stored Pauses
	ok, err := state.KVGet([]byte(ParamsKeyPauses), &stored)
	if err != nil {
		return Pauses{}, fmt.Errorf("params: load pauses: %w", err)
	}
	if !ok {
		return FromView(s.defaults), nil
	}
	return stored, nil
}

// IsPaused implements nativecommon.PauseView. A storage failure reports the
// module as paused so mutations fail closed.
func (s *Store) IsPaused(module string) bool {
	pauses, err := s.Pauses()
	if err != nil {
		return true
	}
	return pauses.IsPaused(module)
}
