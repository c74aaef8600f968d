package main

import (
	"encoding/json"
	"testing"
)

func TestHelloReservesSeatBeforeTick(t *testing.T) {
	a := newServerApp(t)
	for id := uint64(1); id < uint64(MaxClients); id++ {
		if _, err := a.SpawnPlayer(id); err != nil {
			t.Fatalf("SpawnPlayer(%d): %v", id, err)
		}
	}
	s := newTestNetServer(t)
	first, second := newTestPeer("10.0.0.1"), newTestPeer("10.0.0.2")

	// both hellos land in the same tick
	s.Handle(a, netEvent{kind: evHello, peer: first, clientID: 101})
	s.Handle(a, netEvent{kind: evHello, peer: second, clientID: 102})
	tick(a, 1)
	s.AfterTick(a)

	if n := a.Players.Len(); n != MaxClients {
		t.Errorf("players = %d, want %d", n, MaxClients)
	}
	if n := a.ConnectedClients(); n != 1 {
		t.Errorf("connected = %d, want 1", n)
	}
	if n := s.PeerCount(); n != 1 {
		t.Errorf("peers = %d, want 1", n)
	}
	if !second.closed || second.joined {
		t.Errorf("overflow peer closed=%v joined=%v, want released", second.closed, second.joined)
	}
	if got := peerMessages(t, second); len(got) != 1 || got[0].T != MsgError || errorText(t, got[0]) != ErrServerFull.Error() {
		t.Errorf("overflow peer got %+v, want one server full error", got)
	}
	if got := peerMessages(t, first); len(got) != 1 || got[0].T != MsgWelcome {
		t.Errorf("seated peer got %+v, want a welcome", got)
	}
	if _, ok := FindPlayer(a.World, 101); !ok {
		t.Error("seated client has no ship")
	}
	if _, ok := FindPlayer(a.World, 102); ok {
		t.Error("rejected client got a ship")
	}
}

func TestHelloPrefersTokenColor(t *testing.T) {
	a := newServerApp(t)
	s := newTestNetServer(t)
	purple := ColorPurple

	s.Handle(a, netEvent{kind: evHello, peer: newTestPeer("10.0.0.1"), clientID: 5, color: &purple})
	if c, _ := a.Players.ColorOf(5); c != ColorPurple {
		t.Errorf("color = %s, want the token's Purple", c)
	}
	s.Handle(a, netEvent{kind: evHello, peer: newTestPeer("10.0.0.2"), clientID: 6, color: &purple})
	if c, ok := a.Players.ColorOf(6); !ok || c == ColorPurple {
		t.Errorf("color = %s, %v, want a free color other than Purple", c, ok)
	}
}

func TestLostSeatDropsPeer(t *testing.T) {
	a := newServerApp(t)
	s := newTestNetServer(t)
	p := newTestPeer("10.0.0.1")

	s.Handle(a, netEvent{kind: evHello, peer: p, clientID: 7})
	tick(a, 1)
	a.Players.RemoveClient(7)
	s.AfterTick(a)

	if !p.closed || p.joined {
		t.Errorf("peer closed=%v joined=%v, want released", p.closed, p.joined)
	}
	if n := s.PeerCount(); n != 0 {
		t.Errorf("peers = %d, want 0", n)
	}
	// nothing may send to the released peer
	s.Broadcast([]byte{1})

	tick(a, 1)
	if n := a.ConnectedClients(); n != 0 {
		t.Errorf("connected = %d, want 0", n)
	}
	if _, ok := FindPlayer(a.World, 7); ok {
		t.Error("ship of the dropped client is still alive")
	}

	// the read side reporting the close later is harmless
	s.Handle(a, netEvent{kind: evClosed, peer: p})
	tick(a, 1)
	if n := a.ConnectedClients(); n != 0 {
		t.Errorf("connected = %d after the late close, want 0", n)
	}
}

// ---------- helpers ----------

func newTestNetServer(t *testing.T) *NetServer {
	t.Helper()
	return &NetServer{
		auth:  newTestAuth(t, ""),
		name:  "test",
		peers: make(map[uint64]*Peer),
	}
}

func newTestPeer(ip string) *Peer {
	return &Peer{send: make(chan outbound, sendBufSize), remoteAddr: ip}
}

// peerMessages drains the JSON messages queued for p.
func peerMessages(t *testing.T, p *Peer) []InEnvelope {
	t.Helper()
	var out []InEnvelope
	for {
		select {
		case msg, ok := <-p.send:
			if !ok {
				return out
			}
			var env InEnvelope
			if err := json.Unmarshal(msg.data, &env); err != nil {
				t.Fatalf("decode %q: %v", msg.data, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func errorText(t *testing.T, env InEnvelope) string {
	t.Helper()
	var msg ErrorMsg
	if err := json.Unmarshal(env.D, &msg); err != nil {
		t.Fatalf("decode error message: %v", err)
	}
	return msg.Msg
}
