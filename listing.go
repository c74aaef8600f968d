package main

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	ListingTTL     = 10 * time.Second
	ListingPath    = "/api/v1/matchmaking/ephemeral/lobbies"
	maxLobbyBody   = 4096
	maxListedLobby = 1024
)

// Listing is an in-memory directory of advertised lobbies. Entries expire
// when their server stops refreshing them.
type Listing struct {
	mu      sync.Mutex
	lobbies map[string]Lobby
	now     func() time.Time
}

func NewListing() *Listing {
	return &Listing{
		lobbies: make(map[string]Lobby),
		now:     time.Now,
	}
}

// Put stores or refreshes a lobby keyed by its IP.
func (l *Listing) Put(lobby Lobby) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	if _, ok := l.lobbies[lobby.IP]; !ok && len(l.lobbies) >= maxListedLobby {
		return false
	}
	lobby.LastUpdated = uint64(l.now().UnixMilli())
	l.lobbies[lobby.IP] = lobby
	return true
}

// Snapshot returns the live lobbies.
func (l *Listing) Snapshot() map[string]Lobby {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	out := make(map[string]Lobby, len(l.lobbies))
	for ip, lobby := range l.lobbies {
		out[ip] = lobby
	}
	return out
}

func (l *Listing) pruneLocked() {
	cutoff := uint64(l.now().Add(-ListingTTL).UnixMilli())
	for ip, lobby := range l.lobbies {
		if lobby.LastUpdated < cutoff {
			delete(l.lobbies, ip)
		}
	}
}

// ServeHTTP handles POST (advertise) and GET (list).
func (l *Listing) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(l.Snapshot()); err != nil {
			log.Printf("listing: encode: %v", err)
		}
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxLobbyBody))
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}
		var lobby Lobby
		if err := json.Unmarshal(body, &lobby); err != nil {
			http.Error(w, "malformed lobby", http.StatusBadRequest)
			return
		}
		if net.ParseIP(lobby.IP) == nil {
			http.Error(w, "malformed lobby ip", http.StatusBadRequest)
			return
		}
		if !l.Put(lobby) {
			http.Error(w, "listing full", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(postSuccess))
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ListingRoutes mounts the directory and a health check.
func ListingRoutes(l *Listing) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(ListingPath, l)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}
