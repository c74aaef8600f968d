package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, joinURL func() string, ledger *Ledger) *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		peer := NewPeer(hub, conn, ip)
		go peer.WritePump(hub.ctx)
		go peer.ReadPump()
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/join.png", JoinQRHandler(joinURL))

	if ledger != nil {
		mux.HandleFunc("/rounds", ledger.RoundsHandler)
	}

	return mux
}

// ServerOptions configures a listening game server.
type ServerOptions struct {
	BindIP   net.IP
	PublicIP net.IP
	Port     uint16
	Name     string
	Password string
	Ledger   *Ledger
}

// NetServer accepts websocket clients and turns their traffic into app
// events. Everything except the HTTP handlers runs on the game loop.
type NetServer struct {
	hub      *Hub
	auth     *Auth
	cancel   context.CancelFunc
	srv      *http.Server
	listener net.Listener
	name     string
	peers    map[uint64]*Peer
	pending  []*Peer

	mu       sync.Mutex
	publicIP net.IP
}

// StartNetServer binds the game port and starts serving. A bind failure is
// returned to the caller.
func StartNetServer(parent context.Context, opts ServerOptions) (*NetServer, error) {
	auth, err := NewAuth(opts.Password)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(opts.BindIP.String(), strconv.Itoa(int(opts.Port)))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(parent)
	s := &NetServer{
		hub:      NewHub(ctx, auth),
		auth:     auth,
		cancel:   cancel,
		listener: l,
		name:     opts.Name,
		peers:    make(map[uint64]*Peer),
	}
	s.SetPublicIP(opts.PublicIP)
	s.srv = &http.Server{Handler: SetupRoutes(s.hub, s.JoinURL, opts.Ledger)}
	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("serve: %v", err)
		}
	}()
	log.Printf("listening on %s", l.Addr())
	return s, nil
}

// Port is the TCP port actually bound.
func (s *NetServer) Port() uint16 {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}

// SetPublicIP records the address players reach this server on.
func (s *NetServer) SetPublicIP(ip net.IP) {
	s.mu.Lock()
	s.publicIP = ip
	s.mu.Unlock()
}

// JoinURL is the websocket address clients should dial.
func (s *NetServer) JoinURL() string {
	host := "127.0.0.1"
	s.mu.Lock()
	if s.publicIP != nil {
		host = s.publicIP.String()
	}
	s.mu.Unlock()
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port()))) + "/ws"
}

func (s *NetServer) HasPassword() bool {
	return s.auth.HasPassword()
}

func (s *NetServer) Events() <-chan netEvent {
	return s.hub.events
}

// PeerCount is the number of joined clients.
func (s *NetServer) PeerCount() int {
	return len(s.peers)
}

// Handle applies one connection event to the app.
func (s *NetServer) Handle(a *App, ev netEvent) {
	p := ev.peer
	switch ev.kind {
	case evHello:
		if p.joined || p.closed {
			return
		}
		id := ev.clientID
		if _, taken := s.peers[id]; taken || id == ServerID || id == Unowned {
			id = freshClientID(s.peers)
		}
		// the color is reserved now so hellos drained in the same tick
		// cannot overbook the palette
		if _, known := a.Players.ColorOf(id); !known {
			var color PlayerColor
			ok := false
			if ev.color != nil {
				if _, used := a.Players.ClientOf(*ev.color); !used {
					color, ok = *ev.color, true
				}
			}
			if !ok {
				color, ok = a.Players.AvailableColor()
			}
			if !ok {
				log.Printf("rejecting %s: %v", p.remoteAddr, ErrServerFull)
				p.SendError(ErrServerFull)
				p.release()
				return
			}
			a.Players.Insert(id, color)
		}
		p.clientID = id
		p.joined = true
		s.peers[id] = p
		s.pending = append(s.pending, p)
		a.PushServerEvent(ServerEvent{Kind: ClientConnected, ClientID: id})

	case evDiff:
		if p.joined {
			a.PushClientDiff(FromClient{ClientID: p.clientID, Event: ev.diff})
		}

	case evClosed:
		if p.joined {
			p.joined = false
			delete(s.peers, p.clientID)
			a.PushServerEvent(ServerEvent{Kind: ClientDisconnected, ClientID: p.clientID})
		}
		p.release()
	}
}

// AfterTick welcomes peers whose ships were spawned this tick.
func (s *NetServer) AfterTick(a *App) {
	for _, p := range s.pending {
		if !p.joined {
			continue
		}
		color, ok := a.Players.ColorOf(p.clientID)
		if !ok {
			// the seat was lost before the ship spawned
			p.SendError(ErrServerFull)
			p.joined = false
			delete(s.peers, p.clientID)
			a.PushServerEvent(ServerEvent{Kind: ClientDisconnected, ClientID: p.clientID})
			p.release()
			continue
		}
		token, err := s.auth.IssueSeat(p.clientID, color)
		if err != nil {
			log.Printf("issue seat token: %v", err)
		}
		p.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
			ClientID:   p.clientID,
			Color:      color,
			Token:      token,
			ServerName: s.name,
		}})
	}
	s.pending = s.pending[:0]
}

// Broadcast sends a binary frame to every joined peer.
func (s *NetServer) Broadcast(data []byte) {
	for _, p := range s.peers {
		p.SendBinary(data)
	}
}

// Close stops accepting connections and hangs up on every peer.
func (s *NetServer) Close() {
	s.cancel()
	s.srv.Close()
	for id, p := range s.peers {
		p.release()
		delete(s.peers, id)
	}
	s.pending = nil
}

func freshClientID(taken map[uint64]*Peer) uint64 {
	var b [8]byte
	for {
		rand.Read(b[:])
		id := binary.LittleEndian.Uint64(b[:])
		if _, used := taken[id]; !used && id != ServerID && id != Unowned {
			return id
		}
	}
}
