package main

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

// PostGameCountdown is how long the results stay up before the next round.
const PostGameCountdown = 5.0

// RoundPlayer is one participant of a finished round. Placement 1 is the
// winner; eliminated players are ranked by how long they lasted.
type RoundPlayer struct {
	Color     PlayerColor `json:"color"`
	ClientID  uint64      `json:"client_id"`
	Placement int         `json:"placement"`
}

// RoundResult summarizes one Playing phase.
type RoundResult struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  float64       `json:"duration"`
	Winner    *PlayerColor  `json:"winner,omitempty"`
	Players   []RoundPlayer `json:"players"`
}

type roundTracker struct {
	active     bool
	id         string
	startedAt  time.Time
	started    float64
	entrants   map[PlayerColor]uint64
	eliminated []RoundPlayer
	winner     *PlayerColor
}

// enter records the client flying color. Ships spawned mid-round join the
// round too.
func (r *roundTracker) enter(c PlayerColor, clientID uint64) {
	if r.active {
		r.entrants[c] = clientID
	}
}

func (r *roundTracker) eliminate(c PlayerColor, clientID uint64) {
	if r.active {
		r.eliminated = append(r.eliminated, RoundPlayer{Color: c, ClientID: clientID})
	}
}

func installRounds(a *App) {
	a.AddSystem(StagePreUpdate, "pregame_listen_for_player_connect", pregameListenForPlayerConnect, IsServer, InState(StatePreGame))
	a.State.OnEnter(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.startRound()
		}
	})
	a.State.OnExit(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.despawnAll(filter.Contains(Laser))
		}
	})
	a.AddSystem(StagePostUpdate, "check_last_player_standing", checkLastPlayerStanding, IsServer, InState(StatePlaying))
	a.AddSystem(StagePostUpdate, "post_game_countdown", postGameCountdown, IsServer, InState(StatePostGame))
}

func pregameListenForPlayerConnect(a *App) {
	for _, ev := range a.serverEvents {
		if ev.Kind == ClientConnected {
			a.State.Set(StatePlaying)
			return
		}
	}
}

// startRound gives every registered client a fresh ship at its spawn point.
func (a *App) startRound() {
	for _, id := range a.Players.Clients() {
		e, err := a.SpawnPlayer(id)
		if err != nil {
			log.Printf("round start: client %d: %v", id, err)
			continue
		}
		resetPlayer(e)
	}
	a.round = roundTracker{
		active:    true,
		id:        uuid.NewString(),
		startedAt: time.Now().UTC(),
		started:   a.Time.Elapsed,
		entrants:  make(map[PlayerColor]uint64),
	}
	players.Each(a.World, func(e *donburi.Entry) {
		a.round.entrants[Player.Get(e).Color] = ownerOf(e)
	})
	log.Printf("round %s started with %d players", a.round.id, len(a.round.entrants))
}

// checkLastPlayerStanding ends the round once at most one ship remains.
func checkLastPlayerStanding(a *App) {
	if players.Count(a.World) > 1 {
		return
	}
	var winner *PlayerColor
	if e, ok := players.First(a.World); ok {
		c := Player.Get(e).Color
		winner = &c
	}
	a.finishRound(winner)
	a.State.Set(StatePostGame)
}

func (a *App) finishRound(winner *PlayerColor) {
	r := &a.round
	r.winner = winner
	if !r.active {
		return
	}
	r.active = false
	result := RoundResult{
		ID:        r.id,
		StartedAt: r.startedAt,
		EndedAt:   time.Now().UTC(),
		Duration:  a.Time.Elapsed - r.started,
		Winner:    winner,
	}
	placed := make(map[uint64]bool)
	place := 1
	if winner != nil {
		id := r.entrants[*winner]
		result.Players = append(result.Players, RoundPlayer{Color: *winner, ClientID: id, Placement: place})
		placed[id] = true
		place++
	}
	for i := len(r.eliminated) - 1; i >= 0; i-- {
		rp := r.eliminated[i]
		if placed[rp.ClientID] {
			continue
		}
		rp.Placement = place
		result.Players = append(result.Players, rp)
		placed[rp.ClientID] = true
		place++
	}
	if winner != nil {
		log.Printf("round %s over, %s wins", r.id, *winner)
	} else {
		log.Printf("round %s over, no winner", r.id)
	}
	if a.OnRoundEnd != nil {
		a.OnRoundEnd(result)
	}
}

// Winner is the color that won the last round, if any.
func (a *App) Winner() *PlayerColor {
	return a.round.winner
}

// PostGameRemaining is the countdown left in PostGame, or 0.
func (a *App) PostGameRemaining() float64 {
	if a.State.Current() != StatePostGame {
		return 0
	}
	if a.Role == RoleClient {
		return a.remoteCountdown
	}
	return math.Max(0, PostGameCountdown-(a.Time.Elapsed-a.State.EnteredAt()))
}

func postGameCountdown(a *App) {
	if a.Time.Elapsed-a.State.EnteredAt() < PostGameCountdown {
		return
	}
	if a.ConnectedClients() > 0 {
		a.State.Set(StatePlaying)
	} else {
		a.State.Set(StatePreGame)
	}
}
