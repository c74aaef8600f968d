package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	helloWait         = 10 * time.Second
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

type outbound struct {
	binary bool
	data   []byte
}

type netEventKind uint8

const (
	evHello netEventKind = iota
	evDiff
	evClosed
)

// netEvent is what connection goroutines hand to the game loop.
type netEvent struct {
	kind     netEventKind
	peer     *Peer
	clientID uint64
	color    *PlayerColor
	diff     ActionDiff
}

// Peer is one websocket connection to the server.
type Peer struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan outbound
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	helloDone  bool

	// owned by the game loop
	clientID uint64
	joined   bool
	closed   bool
}

// NewPeer creates a new Peer
func NewPeer(hub *Hub, conn *websocket.Conn, remoteAddr string) *Peer {
	return &Peer{
		hub:        hub,
		conn:       conn,
		send:       make(chan outbound, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

func (p *Peer) emit(ev netEvent) bool {
	ev.peer = p
	select {
	case p.hub.events <- ev:
		return true
	case <-p.hub.ctx.Done():
		return false
	}
}

// ReadPump reads messages from the WebSocket connection. The connection is
// closed by WritePump once the game loop releases the peer.
func (p *Peer) ReadPump() {
	defer func() {
		p.hub.TrackDisconnect(p.remoteAddr)
		p.emit(netEvent{kind: evClosed})
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(helloWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			return
		}

		// Rate limiting
		now := time.Now()
		if now.After(p.msgResetAt) {
			p.msgCount = 0
			p.msgResetAt = now.Add(time.Second)
		}
		p.msgCount++
		if p.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", p.remoteAddr)
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}
		if !p.handleMessage(message) {
			return
		}
	}
}

// handleMessage routes one control message. It returns false when the
// connection should be dropped.
func (p *Peer) handleMessage(raw []byte) bool {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error from %s: %v", p.remoteAddr, err)
		return true
	}

	switch env.T {
	case MsgHello:
		if p.helloDone {
			return true
		}
		return p.handleHello(env.D)
	case MsgDiff:
		if !p.helloDone {
			return true
		}
		var diff ActionDiff
		if err := json.Unmarshal(env.D, &diff); err != nil {
			return true
		}
		return p.emit(netEvent{kind: evDiff, diff: diff})
	case MsgLeave:
		return false
	}
	return true
}

func (p *Peer) handleHello(data json.RawMessage) bool {
	var msg HelloMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		p.SendError(err)
		return false
	}
	if msg.Protocol != ProtocolID {
		log.Printf("rejecting %s: protocol %d, want %d", p.remoteAddr, msg.Protocol, ProtocolID)
		p.SendError(ErrProtocolMismatch)
		return false
	}
	if err := p.hub.auth.CheckPassword(msg.Password, p.remoteAddr); err != nil {
		log.Printf("rejecting %s: %v", p.remoteAddr, err)
		p.SendError(err)
		return false
	}

	ev := netEvent{kind: evHello, clientID: msg.ClientID}
	if msg.Token != "" {
		if id, color, err := p.hub.auth.ValidateSeat(msg.Token); err == nil {
			ev.clientID = id
			ev.color = &color
		} else {
			log.Printf("ignoring seat token from %s: %v", p.remoteAddr, err)
		}
	}
	p.helloDone = true
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	return p.emit(ev)
}

// WritePump writes messages to the WebSocket connection
func (p *Peer) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := p.conn.WriteMessage(kind, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// SendJSON sends a JSON message to the peer
func (p *Peer) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	p.enqueue(outbound{data: data})
}

// SendError reports err to the peer.
func (p *Peer) SendError(err error) {
	p.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
func (p *Peer) SendBinary(data []byte) {
	p.enqueue(outbound{binary: true, data: data})
}

// enqueue must not be called after release. The game loop removes a peer
// from every send path before releasing it.
func (p *Peer) enqueue(msg outbound) {
	select {
	case p.send <- msg:
	default:
		// Peer too slow, drop message
	}
}

// release closes the send queue so WritePump flushes and hangs up. Only the
// game loop calls it.
func (p *Peer) release() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}
