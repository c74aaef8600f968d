package main

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
)

// GameState is the top level phase of the process.
type GameState uint8

const (
	StateLoading GameState = iota
	StateMainMenu
	StatePreGame
	StatePlaying
	StatePostGame
)

var stateNames = [...]string{"Loading", "MainMenu", "PreGame", "Playing", "PostGame"}

func (s GameState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("GameState(%d)", uint8(s))
}

// allowedTransitions lists the edges Set accepts. Disconnect may return to
// the main menu from anywhere, which is handled separately.
var allowedTransitions = map[GameState][]GameState{
	StateLoading:  {StateMainMenu},
	StateMainMenu: {StatePreGame},
	StatePreGame:  {StatePlaying},
	StatePlaying:  {StatePostGame, StatePreGame},
	StatePostGame: {StatePlaying, StatePreGame},
}

// StateHook runs on entering or leaving a state.
type StateHook func(a *App)

// StateMachine holds the current state and at most one pending transition.
// Transitions are applied at the start of a tick, running the exit hooks of
// the old state before the enter hooks of the new one.
type StateMachine struct {
	current   GameState
	pending   GameState
	hasNext   bool
	enteredAt float64
	onEnter   map[GameState][]StateHook
	onExit    map[GameState][]StateHook
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateLoading,
		onEnter: make(map[GameState][]StateHook),
		onExit:  make(map[GameState][]StateHook),
	}
}

// Current returns the active state.
func (m *StateMachine) Current() GameState {
	return m.current
}

// Pending returns the queued transition target, if any.
func (m *StateMachine) Pending() (GameState, bool) {
	return m.pending, m.hasNext
}

// EnteredAt is the elapsed game time at which the current state began.
func (m *StateMachine) EnteredAt() float64 {
	return m.enteredAt
}

// Set queues a transition to next. It returns false if the edge is not
// allowed from the current state. Setting the current state is a no-op.
func (m *StateMachine) Set(next GameState) bool {
	if next == m.current {
		m.hasNext = false
		return true
	}
	if next != StateMainMenu && !canTransition(m.current, next) {
		log.Printf("state: ignoring transition %s -> %s", m.current, next)
		return false
	}
	m.pending = next
	m.hasNext = true
	return true
}

// Follow queues a transition without checking the edge table. Clients use it
// to mirror whatever state the server reports.
func (m *StateMachine) Follow(next GameState) {
	if next == m.current {
		m.hasNext = false
		return
	}
	m.pending = next
	m.hasNext = true
}

func (m *StateMachine) OnEnter(s GameState, hook StateHook) {
	m.onEnter[s] = append(m.onEnter[s], hook)
}

func (m *StateMachine) OnExit(s GameState, hook StateHook) {
	m.onExit[s] = append(m.onExit[s], hook)
}

// apply performs the pending transition, if any.
func (m *StateMachine) apply(a *App) {
	if !m.hasNext {
		return
	}
	prev, next := m.current, m.pending
	m.hasNext = false
	_, span := tracer.Start(context.Background(), "state.transition")
	span.SetAttributes(attribute.String("state.from", prev.String()), attribute.String("state.to", next.String()))
	defer span.End()
	for _, hook := range m.onExit[prev] {
		hook(a)
	}
	m.current = next
	m.enteredAt = a.Time.Elapsed
	log.Printf("state: %s -> %s", prev, next)
	for _, hook := range m.onEnter[next] {
		hook(a)
	}
}

func canTransition(from, to GameState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
