package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"
)

const (
	TickRate       = 60 // simulation ticks per second
	BroadcastRate  = 30 // snapshots per second
	TickDuration   = time.Second / TickRate
	BroadcastEvery = TickRate / BroadcastRate
)

// ListenOptions configures hosting a game.
type ListenOptions struct {
	BindIP net.IP
	// PublicIP is advertised to players. Nil waits for the public IP lookup.
	PublicIP    net.IP
	Port        uint16
	Name        string
	Password    string
	HostPlayer  bool
	ListPrivate bool
}

// GameOptions holds process-wide settings.
type GameOptions struct {
	Seed           uint64
	MatchmakingURL string
	PublicIPURL    string
	Ledger         *Ledger
}

// Game drives one App and whichever side of the network it is on. All of
// its methods run on the loop goroutine.
type Game struct {
	ctx  context.Context
	opts GameOptions
	app  *App

	server  *NetServer
	client  *NetClient
	listen  ListenOptions
	connect ConnectOptions
	tokens  map[string]string

	mm      *Matchmaker
	netInfo *NetworkInfo
	ui      *UI

	serverName string
	status     string
	quit       bool
}

// NewGame builds a game in the main menu and starts the public IP lookup.
func NewGame(ctx context.Context, opts GameOptions) *Game {
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	g := &Game{
		ctx:     ctx,
		opts:    opts,
		app:     NewApp(opts.Seed),
		tokens:  make(map[string]string),
		mm:      NewMatchmaker(opts.MatchmakingURL),
		netInfo: NewNetworkInfo(opts.PublicIPURL),
	}
	g.netInfo.FetchIP(ctx)
	return g
}

func (g *Game) App() *App {
	return g.app
}

// AttachUI hands the front-end to the loop. The game owns it from here on.
func (g *Game) AttachUI(ui *UI) {
	g.ui = ui
}

// Status is the last connection problem worth showing to the player.
func (g *Game) Status() string {
	return g.status
}

func (g *Game) ServerName() string {
	return g.serverName
}

func (g *Game) Servers() []Lobby {
	return g.mm.Servers()
}

func (g *Game) Server() *NetServer {
	return g.server
}

// PublicIP is the discovered public address, if known.
func (g *Game) PublicIP() (net.IP, bool) {
	return g.netInfo.PublicIP()
}

// Quit stops Run after the current tick.
func (g *Game) Quit() {
	g.quit = true
}

// Listen starts hosting. Bind failures are returned and leave the game in the
// main menu.
func (g *Game) Listen(opts ListenOptions) error {
	if g.app.Role != RoleNone {
		g.Disconnect()
	}
	if opts.Name == "" {
		opts.Name = "Asteroids Arena"
	}
	srv, err := StartNetServer(g.ctx, ServerOptions{
		BindIP:   opts.BindIP,
		PublicIP: opts.PublicIP,
		Port:     opts.Port,
		Name:     opts.Name,
		Password: opts.Password,
		Ledger:   g.opts.Ledger,
	})
	if err != nil {
		g.status = err.Error()
		return err
	}
	g.server = srv
	g.listen = opts
	g.serverName = opts.Name
	g.status = ""
	g.app.Role = RoleServer
	if g.opts.Ledger != nil {
		g.app.OnRoundEnd = g.opts.Ledger.Record
	}
	if opts.HostPlayer {
		if _, err := g.app.SpawnPlayer(ServerID); err != nil {
			log.Printf("host player: %v", err)
		}
		g.app.LocalID = ServerID
	}
	g.mm.Lobby = &Lobby{
		Name:           opts.Name,
		PlayerCapacity: uint8(MaxClients),
		AutoRestart:    true,
		HasPassword:    srv.HasPassword(),
	}
	g.mm.Advertise = false
	g.refreshLobbyIP()
	g.app.State.Set(StatePreGame)
	return nil
}

// Connect joins a server. Dial failures are returned and leave the game in
// the main menu.
func (g *Game) Connect(opts ConnectOptions) error {
	if g.app.Role != RoleNone {
		g.Disconnect()
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.ClientID == 0 {
		opts.ClientID = uint64(time.Now().UnixMilli())
	}
	key := serverKey(opts.ServerIP, opts.Port)
	if opts.Token == "" {
		opts.Token = g.tokens[key]
	}
	ctx, cancel := context.WithTimeout(g.ctx, dialTimeout)
	defer cancel()
	c, err := DialServer(ctx, opts)
	if err != nil {
		g.status = err.Error()
		return err
	}
	log.Printf("connecting to %s as %d", key, opts.ClientID)
	g.client = c
	g.connect = opts
	g.status = ""
	g.serverName = ""
	g.app.Role = RoleClient
	g.app.LocalID = opts.ClientID
	g.app.State.Set(StatePreGame)
	return nil
}

// Disconnect tears down the network side, clears the world and returns to
// the main menu.
func (g *Game) Disconnect() {
	if g.server != nil {
		g.server.Close()
		g.server = nil
	}
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
	g.mm.Lobby = nil
	g.mm.Advertise = false
	g.app.Reset()
	g.app.Role = RoleNone
	g.app.OnRoundEnd = nil
	g.app.LocalID = 0
	g.app.State.Set(StateMainMenu)
}

// Run ticks the game until ctx is cancelled or Quit is called.
func (g *Game) Run() error {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()
	defer g.Disconnect()

	for !g.quit {
		select {
		case <-g.ctx.Done():
			return nil
		case now := <-ticker.C:
			g.Step(now)
		}
	}
	return nil
}

// Step runs one tick: network in, front-end input, simulation, network out,
// matchmaking and drawing.
func (g *Game) Step(now time.Time) {
	g.netInfo.Poll()
	if g.server != nil {
		g.drainServer()
	}
	if g.client != nil {
		g.drainClient()
	}
	if g.ui != nil {
		g.ui.Update(g, now)
	}

	g.app.Tick(TickDuration.Seconds())

	if g.server != nil {
		g.server.AfterTick(g.app)
		if g.app.Time.Tick%BroadcastEvery == 0 && g.server.PeerCount() > 0 {
			g.broadcast()
		}
		g.refreshLobbyIP()
		g.mm.Lobby.SlotsOccupied = uint8(g.app.Players.Len())
	}
	if g.client != nil {
		for _, d := range g.app.TakeOutbox() {
			g.client.SendDiff(d)
		}
	}

	if g.server != nil || g.app.State.Current() == StateMainMenu {
		g.mm.Update(g.ctx, now)
	}
	g.mm.Poll()

	if g.ui != nil {
		g.ui.Draw(g)
	}
}

func (g *Game) drainServer() {
	for {
		select {
		case ev := <-g.server.Events():
			g.server.Handle(g.app, ev)
		default:
			return
		}
	}
}

func (g *Game) drainClient() {
	for drained := false; !drained; {
		select {
		case env := <-g.client.Control():
			if !g.handleControl(env) {
				return
			}
		default:
			drained = true
		}
	}
	select {
	case snap := <-g.client.Snapshots():
		g.app.ApplySnapshot(snap)
	default:
	}
	select {
	case <-g.client.Done():
		log.Printf("connection to server lost")
		if g.status == "" {
			g.status = "connection lost"
		}
		g.Disconnect()
	default:
	}
}

// handleControl applies one server control message. It returns false once
// the session is over.
func (g *Game) handleControl(env InEnvelope) bool {
	switch env.T {
	case MsgWelcome:
		var msg WelcomeMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			log.Printf("bad welcome: %v", err)
			return true
		}
		g.app.LocalID = msg.ClientID
		g.serverName = msg.ServerName
		if msg.Token != "" {
			g.tokens[serverKey(g.connect.ServerIP, g.connect.Port)] = msg.Token
		}
		log.Printf("joined %q as %s (client %d)", msg.ServerName, msg.Color, msg.ClientID)
	case MsgError:
		var msg ErrorMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			log.Printf("bad error message: %v", err)
			return true
		}
		err := errorFromMsg(msg.Msg)
		log.Printf("server refused: %v", err)
		g.status = describeJoinError(err)
		g.Disconnect()
		return false
	default:
		log.Printf("unknown message type: %s", env.T)
	}
	return true
}

func (g *Game) broadcast() {
	data, err := EncodeSnapshot(g.app.BuildSnapshot())
	if err != nil {
		log.Printf("%v", err)
		return
	}
	g.server.Broadcast(data)
}

// refreshLobbyIP fills in the advertised address once it is known and
// decides whether the lobby may be listed.
func (g *Game) refreshLobbyIP() {
	lobby := g.mm.Lobby
	if lobby == nil || lobby.IP != "" {
		return
	}
	ip := g.listen.PublicIP
	if ip == nil {
		if found, ok := g.netInfo.PublicIP(); ok {
			ip = found
		} else if g.netInfo.Resolved() && !g.listen.BindIP.IsUnspecified() {
			ip = g.listen.BindIP
		}
	}
	if ip == nil {
		return
	}
	lobby.IP = ip.String()
	g.server.SetPublicIP(ip)
	g.mm.Advertise = IsGlobalIP(ip) || g.listen.ListPrivate
	log.Printf("lobby address %s (listed: %v)", lobby.IP, g.mm.Advertise)
}

func describeJoinError(err error) string {
	switch {
	case errors.Is(err, ErrServerFull):
		return "server is full"
	case errors.Is(err, ErrBadPassword):
		return "wrong password"
	case errors.Is(err, ErrProtocolMismatch):
		return "server runs a different version"
	}
	return fmt.Sprintf("refused: %v", err)
}

func serverKey(ip net.IP, port uint16) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
}
