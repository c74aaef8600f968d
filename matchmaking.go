package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMatchmakingURL = "http://localhost:8091/api/v1/matchmaking/ephemeral/lobbies"
	MatchmakingInterval   = 3 * time.Second
	matchmakingTimeout    = 5 * time.Second
	postSuccess           = "SUCCESS"
)

// Lobby is the ephemeral listing entry a server advertises.
type Lobby struct {
	IP             string `json:"ip"`
	Name           string `json:"name"`
	PlayerCapacity uint8  `json:"playerCapacity"`
	SlotsOccupied  uint8  `json:"slotsOccupied"`
	AutoRestart    bool   `json:"autoRestart"`
	HasPassword    bool   `json:"hasPassword"`
	LastUpdated    uint64 `json:"lastUpdated"`
}

// UnmarshalJSON accepts both camelCase and snake_case keys.
func (l *Lobby) UnmarshalJSON(b []byte) error {
	var raw struct {
		IP             string  `json:"ip"`
		Name           string  `json:"name"`
		PlayerCapacity *uint8  `json:"playerCapacity"`
		SlotsOccupied  *uint8  `json:"slotsOccupied"`
		AutoRestart    *bool   `json:"autoRestart"`
		HasPassword    *bool   `json:"hasPassword"`
		LastUpdated    *uint64 `json:"lastUpdated"`
		PlayerCap      *uint8  `json:"player_capacity"`
		Slots          *uint8  `json:"slots_occupied"`
		Restart        *bool   `json:"auto_restart"`
		Password       *bool   `json:"has_password"`
		Updated        *uint64 `json:"last_updated"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Lobby{
		IP:             raw.IP,
		Name:           raw.Name,
		PlayerCapacity: pick(raw.PlayerCapacity, raw.PlayerCap),
		SlotsOccupied:  pick(raw.SlotsOccupied, raw.Slots),
		AutoRestart:    pick(raw.AutoRestart, raw.Restart),
		HasPassword:    pick(raw.HasPassword, raw.Password),
		LastUpdated:    pick(raw.LastUpdated, raw.Updated),
	}
	return nil
}

func pick[T any](preferred, fallback *T) T {
	if preferred != nil {
		return *preferred
	}
	if fallback != nil {
		return *fallback
	}
	var zero T
	return zero
}

type mmResultKind uint8

const (
	mmPosted mmResultKind = iota
	mmListed
)

type mmResult struct {
	kind    mmResultKind
	body    string
	lobbies map[string]Lobby
	err     error
}

// Matchmaker advertises the hosted lobby and keeps the lobby list fresh.
// Requests run in the background; Poll applies their results on the game
// loop.
type Matchmaker struct {
	url      string
	client   *http.Client
	interval time.Duration
	lastRun  time.Time

	// Lobby is the hosted lobby, nil when not hosting.
	Lobby *Lobby
	// Advertise gates posting the hosted lobby.
	Advertise bool

	servers  map[string]Lobby
	results  chan mmResult
	inflight int
}

func NewMatchmaker(url string) *Matchmaker {
	if url == "" {
		url = DefaultMatchmakingURL
	}
	return &Matchmaker{
		url:      url,
		client:   &http.Client{Timeout: matchmakingTimeout},
		interval: MatchmakingInterval,
		servers:  make(map[string]Lobby),
		results:  make(chan mmResult, 8),
	}
}

// Update starts a POST and a GET when the interval has elapsed. A round is
// skipped while the previous one is still in flight.
func (m *Matchmaker) Update(ctx context.Context, now time.Time) {
	if now.Sub(m.lastRun) < m.interval {
		return
	}
	m.lastRun = now
	if m.inflight > 0 {
		return
	}
	if m.Lobby != nil && m.Advertise {
		lobby := *m.Lobby
		m.inflight++
		go func() { m.results <- m.post(ctx, lobby) }()
	}
	m.inflight++
	go func() { m.results <- m.fetch(ctx) }()
}

// Poll drains finished requests without blocking.
func (m *Matchmaker) Poll() {
	for {
		select {
		case r := <-m.results:
			m.inflight--
			m.apply(r)
		default:
			return
		}
	}
}

func (m *Matchmaker) apply(r mmResult) {
	switch r.kind {
	case mmPosted:
		switch {
		case r.err != nil:
			log.Printf("matchmaking: post lobby: %v", r.err)
		case strings.TrimSpace(r.body) != postSuccess:
			log.Printf("matchmaking: post lobby: non-success reply %q", r.body)
		}
	case mmListed:
		if r.err != nil {
			log.Printf("matchmaking: fetch lobbies: %v", r.err)
			return
		}
		m.servers = r.lobbies
	}
}

// Servers returns the last known lobbies sorted by name.
func (m *Matchmaker) Servers() []Lobby {
	out := make([]Lobby, 0, len(m.servers))
	for _, l := range m.servers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].IP < out[j].IP
	})
	return out
}

func (m *Matchmaker) post(ctx context.Context, lobby Lobby) mmResult {
	ctx, span := tracer.Start(ctx, "matchmaking.post")
	defer span.End()
	span.SetAttributes(attribute.String("lobby.ip", lobby.IP))

	res := mmResult{kind: mmPosted}
	body, err := json.Marshal(lobby)
	if err != nil {
		res.err = fmt.Errorf("encode lobby: %w", err)
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		res.err = fmt.Errorf("build request: %w", err)
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	reply, err := m.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.err = err
		return res
	}
	res.body = string(reply)
	return res
}

func (m *Matchmaker) fetch(ctx context.Context) mmResult {
	ctx, span := tracer.Start(ctx, "matchmaking.fetch")
	defer span.End()

	res := mmResult{kind: mmListed}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		res.err = fmt.Errorf("build request: %w", err)
		return res
	}
	reply, err := m.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.err = err
		return res
	}
	lobbies := make(map[string]Lobby)
	if err := json.Unmarshal(reply, &lobbies); err != nil {
		res.err = fmt.Errorf("decode lobby list: %w", err)
		return res
	}
	span.SetAttributes(attribute.Int("lobbies", len(lobbies)))
	res.lobbies = lobbies
	return res
}

func (m *Matchmaker) do(req *http.Request) ([]byte, error) {
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL, resp.StatusCode)
	}
	return body, nil
}
