package main

import (
	"testing"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const testDT = 1.0 / TickRate

func TestNewAppStartsInMainMenu(t *testing.T) {
	a := NewApp(1)
	if got := a.State.Current(); got != StateMainMenu {
		t.Fatalf("state = %s, want MainMenu", got)
	}
	if a.Role != RoleNone {
		t.Errorf("role = %s, want none", a.Role)
	}
}

func TestSystemsGatedByRole(t *testing.T) {
	a := NewApp(1)
	a.PushServerEvent(ServerEvent{Kind: ClientConnected, ClientID: 4})
	tick(a, 1)
	if _, ok := FindPlayer(a.World, 4); ok {
		t.Fatal("app without a role spawned a player")
	}

	a.Role = RoleServer
	a.PushServerEvent(ServerEvent{Kind: ClientConnected, ClientID: 4})
	tick(a, 1)
	if _, ok := FindPlayer(a.World, 4); !ok {
		t.Fatal("server did not spawn a player for a connected client")
	}
}

func TestConnectedClients(t *testing.T) {
	a := newServerApp(t)
	a.PushServerEvent(ServerEvent{Kind: ClientConnected, ClientID: 1})
	a.PushServerEvent(ServerEvent{Kind: ClientConnected, ClientID: 2})
	a.PushServerEvent(ServerEvent{Kind: ClientDisconnected, ClientID: 1})
	if got := a.ConnectedClients(); got != 1 {
		t.Errorf("ConnectedClients = %d, want 1", got)
	}
}

func TestResetClearsReplicatedEntities(t *testing.T) {
	a := newServerApp(t)
	startPlaying(t, a, 1, 2)
	a.Reset()
	if n := donburi.NewQuery(filter.Contains(Replicated)).Count(a.World); n != 0 {
		t.Errorf("%d replicated entities left after reset", n)
	}
	if a.Players.Len() != 0 {
		t.Errorf("players registry has %d entries after reset", a.Players.Len())
	}
	if a.Winner() != nil {
		t.Error("winner survived reset")
	}
}

// ---------- helpers ----------

func newServerApp(t *testing.T) *App {
	t.Helper()
	a := NewApp(42)
	a.Role = RoleServer
	return a
}

func tick(a *App, n int) {
	for i := 0; i < n; i++ {
		a.Tick(testDT)
	}
}

// startPlaying registers clients, enters Playing and clears the random
// asteroids and power-ups so tests control every hazard.
func startPlaying(t *testing.T, a *App, clients ...uint64) {
	t.Helper()
	for _, id := range clients {
		if _, err := a.SpawnPlayer(id); err != nil {
			t.Fatalf("SpawnPlayer(%d): %v", id, err)
		}
	}
	if !a.State.Set(StatePreGame) {
		t.Fatalf("cannot enter PreGame from %s", a.State.Current())
	}
	tick(a, 1)
	if !a.State.Set(StatePlaying) {
		t.Fatalf("cannot enter Playing from %s", a.State.Current())
	}
	tick(a, 1)
	if got := a.State.Current(); got != StatePlaying {
		t.Fatalf("state = %s, want Playing", got)
	}
	a.despawnAll(filter.Contains(Asteroid))
	a.despawnAll(filter.Contains(Collectible))
	players.Each(a.World, func(e *donburi.Entry) {
		resetPlayer(e)
	})
}

func mustPlayer(t *testing.T, a *App, id uint64) *donburi.Entry {
	t.Helper()
	e, ok := FindPlayer(a.World, id)
	if !ok {
		t.Fatalf("no player for client %d", id)
	}
	return e
}

func entries(a *App, q *donburi.Query) []*donburi.Entry {
	var out []*donburi.Entry
	q.Each(a.World, func(e *donburi.Entry) {
		out = append(out, e)
	})
	return out
}

func countWith(a *App, f filter.LayoutFilter) int {
	return donburi.NewQuery(f).Count(a.World)
}
