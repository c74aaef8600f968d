package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMatchmakerAdvertisesAndLists(t *testing.T) {
	listing := NewListing()
	srv := httptest.NewServer(ListingRoutes(listing))
	defer srv.Close()

	m := NewMatchmaker(srv.URL + ListingPath)
	m.Lobby = &Lobby{IP: "203.0.113.5", Name: "Alpha", PlayerCapacity: 6, SlotsOccupied: 1}
	m.Advertise = true

	ctx := context.Background()
	now := time.Now()
	deadline := now.Add(5 * time.Second)
	for len(m.Servers()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("lobby never showed up in the list")
		}
		m.Update(ctx, now)
		m.Poll()
		now = now.Add(MatchmakingInterval)
		time.Sleep(10 * time.Millisecond)
	}
	got := m.Servers()[0]
	if got.IP != "203.0.113.5" || got.Name != "Alpha" || got.SlotsOccupied != 1 {
		t.Errorf("listed lobby = %+v", got)
	}
}

func TestMatchmakerSkipsPostWhenNotAdvertised(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	m := NewMatchmaker(srv.URL)
	m.Lobby = &Lobby{IP: "10.0.0.2", Name: "private"}
	m.Advertise = false
	m.Update(context.Background(), time.Now())
	waitIdle(t, m)

	if n := posts.Load(); n != 0 {
		t.Errorf("%d POSTs for an unadvertised lobby", n)
	}
}

func TestMatchmakerRespectsInterval(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	m := NewMatchmaker(srv.URL)
	t0 := time.Now()
	m.Update(context.Background(), t0)
	waitIdle(t, m)
	m.Update(context.Background(), t0.Add(MatchmakingInterval/2))
	waitIdle(t, m)
	if n := gets.Load(); n != 1 {
		t.Fatalf("%d requests within one interval, want 1", n)
	}
	m.Update(context.Background(), t0.Add(MatchmakingInterval))
	waitIdle(t, m)
	if n := gets.Load(); n != 2 {
		t.Errorf("%d requests after one interval, want 2", n)
	}
}

func TestMatchmakerKeepsListOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.Write([]byte("not json"))
			return
		}
		json.NewEncoder(w).Encode(map[string]Lobby{"198.51.100.7": {IP: "198.51.100.7", Name: "Bravo"}})
	}))
	defer srv.Close()

	m := NewMatchmaker(srv.URL)
	t0 := time.Now()
	m.Update(context.Background(), t0)
	waitIdle(t, m)
	if len(m.Servers()) != 1 {
		t.Fatalf("servers = %v, want one", m.Servers())
	}

	fail.Store(true)
	m.Update(context.Background(), t0.Add(MatchmakingInterval))
	waitIdle(t, m)
	if got := m.Servers(); len(got) != 1 || got[0].Name != "Bravo" {
		t.Errorf("servers after a malformed reply = %v, want the previous list", got)
	}
}

func TestMatchmakerHandlesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewMatchmaker(srv.URL)
	m.Lobby = &Lobby{IP: "203.0.113.5"}
	m.Advertise = true
	m.Update(context.Background(), time.Now())
	waitIdle(t, m)
	if len(m.Servers()) != 0 {
		t.Errorf("servers = %v, want none", m.Servers())
	}
}

func TestLobbyJSONUsesCamelCase(t *testing.T) {
	b, err := json.Marshal(Lobby{IP: "1.2.3.4", PlayerCapacity: 6, HasPassword: true})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	json.Unmarshal(b, &raw)
	for _, key := range []string{"ip", "playerCapacity", "slotsOccupied", "autoRestart", "hasPassword", "lastUpdated"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("key %q missing from %s", key, b)
		}
	}
}

func TestServersSortedByName(t *testing.T) {
	m := NewMatchmaker("")
	m.servers = map[string]Lobby{
		"3.3.3.3": {IP: "3.3.3.3", Name: "charlie"},
		"1.1.1.1": {IP: "1.1.1.1", Name: "alpha"},
		"2.2.2.2": {IP: "2.2.2.2", Name: "bravo"},
	}
	got := m.Servers()
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if got[i].Name != want {
			t.Errorf("Servers()[%d] = %q, want %q", i, got[i].Name, want)
		}
	}
}

// ---------- helpers ----------

// waitIdle polls until every request started by Update has been applied.
func waitIdle(t *testing.T, m *Matchmaker) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		m.Poll()
		if m.inflight == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("matchmaker requests did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
