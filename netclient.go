package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 5 * time.Second

// ConnectOptions says where a client dials from and to.
type ConnectOptions struct {
	BindIP   net.IP
	ServerIP net.IP
	Port     uint16
	Password string
	ClientID uint64
	Token    string
}

// NetClient is the client side of a server session.
type NetClient struct {
	conn      *websocket.Conn
	send      chan outbound
	control   chan InEnvelope
	snapshots chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// DialServer connects to a server and sends the hello message.
func DialServer(ctx context.Context, opts ConnectOptions) (*NetClient, error) {
	nd := &net.Dialer{Timeout: dialTimeout}
	if opts.BindIP != nil && !opts.BindIP.IsUnspecified() {
		nd.LocalAddr = &net.TCPAddr{IP: opts.BindIP}
	}
	dialer := websocket.Dialer{
		NetDialContext:   nd.DialContext,
		HandshakeTimeout: dialTimeout,
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(opts.ServerIP.String(), strconv.Itoa(int(opts.Port))),
		Path:   "/ws",
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c := &NetClient{
		conn:      conn,
		send:      make(chan outbound, sendBufSize),
		control:   make(chan InEnvelope, 16),
		snapshots: make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	c.sendJSON(Envelope{T: MsgHello, Data: HelloMsg{
		Protocol: ProtocolID,
		ClientID: opts.ClientID,
		Password: opts.Password,
		Token:    opts.Token,
	}})
	return c, nil
}

func (c *NetClient) readPump() {
	defer c.Close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType == websocket.BinaryMessage {
			snap, err := DecodeSnapshot(message)
			if err != nil {
				log.Printf("%v", err)
				continue
			}
			// keep only the newest snapshot
			select {
			case <-c.snapshots:
			default:
			}
			c.snapshots <- snap
			continue
		}

		var env InEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("unmarshal error: %v", err)
			continue
		}
		select {
		case c.control <- env:
		case <-c.done:
			return
		}
	}
}

func (c *NetClient) writePump() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
			return
		}
	}
}

func (c *NetClient) sendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	select {
	case c.send <- outbound{data: data}:
	case <-c.done:
	default:
		// server too slow, drop message
	}
}

// SendDiff ships one input change to the server.
func (c *NetClient) SendDiff(d ActionDiff) {
	c.sendJSON(Envelope{T: MsgDiff, Data: d})
}

// Snapshots delivers the newest server snapshot.
func (c *NetClient) Snapshots() <-chan Snapshot {
	return c.snapshots
}

// Control delivers JSON control messages from the server.
func (c *NetClient) Control() <-chan InEnvelope {
	return c.control
}

// Done is closed once the session ends.
func (c *NetClient) Done() <-chan struct{} {
	return c.done
}

// Close ends the session. It is safe to call more than once.
func (c *NetClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
