package main

import (
	"context"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		ev   *tcell.EventKey
		want keyPress
	}{
		{tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone), keyPress{key: keyRune, ch: 'w'}},
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), keyPress{key: keyUp}},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), keyPress{key: keyEnter}},
		{tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), keyPress{key: keyQuit}},
		{tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), keyPress{}},
	}
	for _, tt := range tests {
		if got := translateKey(tt.ev); got != tt.want {
			t.Errorf("translateKey(%v) = %+v, want %+v", tt.ev.Name(), got, tt.want)
		}
	}
}

func TestActionForKey(t *testing.T) {
	tests := []struct {
		k    keyPress
		want PlayerAction
		ok   bool
	}{
		{keyPress{key: keyLeft}, ActionTurnLeft, true},
		{keyPress{key: keyRight}, ActionTurnRight, true},
		{keyPress{key: keyUp}, ActionThrust, true},
		{keyPress{key: keyRune, ch: 'a'}, ActionTurnLeft, true},
		{keyPress{key: keyRune, ch: 'D'}, ActionTurnRight, true},
		{keyPress{key: keyRune, ch: 'w'}, ActionThrust, true},
		{keyPress{key: keyRune, ch: ' '}, ActionShoot, true},
		{keyPress{key: keyRune, ch: 'x'}, 0, false},
		{keyPress{key: keyDown}, 0, false},
	}
	for _, tt := range tests {
		got, ok := actionForKey(tt.k)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("actionForKey(%+v) = %v, %v, want %v, %v", tt.k, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMainMenuRenders(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	c := newFakeCanvas(80, 24)
	u.render(c, g)

	for _, item := range mainMenuItems {
		if !c.contains(item) {
			t.Errorf("main menu is missing %q:\n%s", item, c)
		}
	}
}

func TestMenuNavigatesToJoinForm(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	now := time.Now()

	u.handleKey(g, keyPress{key: keyDown}, now)
	u.handleKey(g, keyPress{key: keyEnter}, now)
	if u.menu.page != pageJoin {
		t.Fatalf("page = %d, want the join form", u.menu.page)
	}
	c := newFakeCanvas(80, 24)
	u.render(c, g)
	if !c.contains("Join by IP address") {
		t.Errorf("join form not drawn:\n%s", c)
	}

	u.handleKey(g, keyPress{key: keyEscape}, now)
	if u.menu.page != pageMain {
		t.Errorf("Esc left page %d, want the main menu", u.menu.page)
	}
}

func TestJoinFormRejectsBadIP(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	u.menu.page = pageJoin
	u.menu.join.fields[joinIP].value = "not-an-ip"

	u.handleKey(g, keyPress{key: keyEnter}, time.Now())
	if u.menu.page != pageJoin {
		t.Errorf("page = %d, want to stay on the form", u.menu.page)
	}
	if !strings.Contains(u.menu.join.err, "invalid IP address") {
		t.Errorf("err = %q", u.menu.join.err)
	}
	if g.App().Role != RoleNone {
		t.Errorf("role = %v after a rejected form", g.App().Role)
	}

	// typing clears the error
	u.handleKey(g, keyPress{key: keyBackspace}, time.Now())
	if u.menu.join.err != "" {
		t.Errorf("err = %q after editing", u.menu.join.err)
	}
}

func TestFormEditing(t *testing.T) {
	f := newJoinForm()
	f.fields[joinIP].value = ""
	for _, r := range "10.0.0.7" {
		f.handleKey(keyPress{key: keyRune, ch: r})
	}
	f.handleKey(keyPress{key: keyTab})
	f.handleKey(keyPress{key: keyBackspace})
	if f.focus != joinPort {
		t.Errorf("focus = %d, want the port field", f.focus)
	}
	if !f.handleKey(keyPress{key: keyEnter}) {
		t.Fatal("Enter did not submit")
	}
	_, err := f.connectOptions()
	if err != nil {
		t.Fatalf("connectOptions: %v", err)
	}
	if f.value(joinIP) != "10.0.0.7" || f.value(joinPort) != "476" {
		t.Errorf("fields = %q, %q", f.value(joinIP), f.value(joinPort))
	}
}

func TestCreateFormOptions(t *testing.T) {
	f := newCreateForm()
	opts, err := f.listenOptions()
	if err != nil {
		t.Fatalf("listenOptions: %v", err)
	}
	if opts.PublicIP != nil {
		t.Errorf("public ip = %v, want nil so the lookup fills it in", opts.PublicIP)
	}
	if opts.Port != DefaultPort || !opts.HostPlayer || opts.Name != "Asteroids Arena" {
		t.Errorf("opts = %+v", opts)
	}

	f.fields[createPort].value = "70000"
	if _, err := f.listenOptions(); err == nil {
		t.Error("port 70000 accepted")
	}
	f.fields[createPort].value = "4800"
	f.fields[createIP].value = "300.1.1.1"
	if _, err := f.listenOptions(); err == nil {
		t.Error("bad public ip accepted")
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"4761", 4761, true},
		{"65535", 65535, true},
		{"0", 0, false},
		{"65536", 0, false},
		{"-1", 0, false},
		{"port", 0, false},
	}
	for _, tt := range tests {
		got, err := parsePort(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parsePort(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestMenuQuit(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	u.handleKey(g, keyPress{key: keyEscape}, time.Now())
	u.handleKey(g, keyPress{key: keyEnter}, time.Now())
	if !g.quit {
		t.Error("Quit item did not stop the game")
	}
}

func TestInGameQuitConfirmation(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	hostLocally(t, g)
	now := time.Now()

	u.handleKey(g, keyPress{key: keyEscape}, now)
	if !u.confirmQuit {
		t.Fatal("Esc did not ask for confirmation")
	}
	c := newFakeCanvas(80, 24)
	u.render(c, g)
	if !c.contains("Quit to menu? Y/N") {
		t.Errorf("prompt not drawn:\n%s", c)
	}

	u.handleKey(g, keyPress{key: keyRune, ch: 'n'}, now)
	if u.confirmQuit || g.Server() == nil {
		t.Fatal("'n' did not cancel")
	}

	u.handleKey(g, keyPress{key: keyEscape}, now)
	u.handleKey(g, keyPress{key: keyRune, ch: 'y'}, now)
	if g.Server() != nil {
		t.Error("'y' left the server running")
	}
	g.Step(now)
	if s := g.App().State.Current(); s != StateMainMenu {
		t.Errorf("state = %v, want MainMenu", s)
	}
}

func TestInGameKeysAreHeld(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	hostLocally(t, g)
	now := time.Now()

	u.handleKey(g, keyPress{key: keyRune, ch: 'w'}, now)
	u.handleKey(g, keyPress{key: keyRune, ch: ' '}, now)
	s := u.hold.State(now.Add(KeyHoldTimeout / 2))
	if !s.Pressed(ActionThrust) || !s.Pressed(ActionShoot) {
		t.Errorf("held = %08b, want thrust and shoot", s.Held)
	}
	if s.Pressed(ActionTurnLeft) {
		t.Error("turn left held without a key")
	}
}

func TestPreGameShowsJoinAddress(t *testing.T) {
	g := newTestGame(t)
	u := newUI(nil)
	hostLocally(t, g)

	c := newFakeCanvas(80, 24)
	u.render(c, g)
	if !c.contains("Waiting for Players") {
		t.Errorf("waiting banner missing:\n%s", c)
	}
	if !c.contains(g.Server().JoinURL()) {
		t.Errorf("join url %q missing:\n%s", g.Server().JoinURL(), c)
	}
}

func TestShipGlyph(t *testing.T) {
	tests := []struct {
		rotation float64
		want     rune
	}{
		{0, '↑'},
		{math.Pi / 4, '↖'},
		{math.Pi / 2, '←'},
		{math.Pi, '↓'},
		{-math.Pi, '↓'},
		{-math.Pi / 2, '→'},
		{-math.Pi / 4, '↗'},
		{2 * math.Pi, '↑'},
		{0.1, '↑'},
	}
	for _, tt := range tests {
		if got := shipGlyph(tt.rotation); got != tt.want {
			t.Errorf("shipGlyph(%.2f) = %c, want %c", tt.rotation, got, tt.want)
		}
	}
}

func TestHealthBar(t *testing.T) {
	tests := []struct {
		h     HealthData
		width int
		want  string
	}{
		{HealthData{Current: 50, Max: 100}, 10, "█████░░░░░"},
		{HealthData{Current: 100, Max: 100}, 4, "████"},
		{HealthData{Current: 0, Max: 100}, 4, "░░░░"},
		{HealthData{Current: 150, Max: 100}, 4, "████"},
		{HealthData{}, 3, "░░░"},
	}
	for _, tt := range tests {
		if got := healthBar(tt.h, tt.width); got != tt.want {
			t.Errorf("healthBar(%+v, %d) = %q, want %q", tt.h, tt.width, got, tt.want)
		}
	}
}

func TestRenderHUD(t *testing.T) {
	a := newServerApp(t)
	startPlaying(t, a, 1, 2)
	a.LocalID = 1

	c := newFakeCanvas(80, 24)
	renderHUD(c, a)
	if !c.contains("Red") {
		t.Errorf("hud does not name the local color:\n%s", c)
	}
	if !c.contains("100/100") {
		t.Errorf("hud does not show health:\n%s", c)
	}

	a.LocalID = 99
	c = newFakeCanvas(80, 24)
	renderHUD(c, a)
	if !c.contains("Spectating") {
		t.Errorf("hud for a missing ship:\n%s", c)
	}
}

func TestRenderPostGame(t *testing.T) {
	a := newServerApp(t)
	startPlaying(t, a, 1, 2)
	kill(a, mustPlayer(t, a, 1).Entity())
	tick(a, 2)

	c := newFakeCanvas(80, 24)
	renderPostGame(c, a)
	if !c.contains("Blue wins!") {
		t.Errorf("winner banner missing:\n%s", c)
	}
	if !c.contains("Next round in") {
		t.Errorf("countdown missing:\n%s", c)
	}
}

func TestRenderWorldDrawsShips(t *testing.T) {
	a := newServerApp(t)
	startPlaying(t, a, 1)

	c := newFakeCanvas(120, 40)
	renderWorld(c, a)
	found := false
	for _, r := range c.cells {
		for _, g := range shipGlyphs {
			if r == g {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("no ship glyph drawn:\n%s", c)
	}
}

// ---------- helpers ----------

type fakeCanvas struct {
	w, h  int
	cells map[[2]int]rune
}

func newFakeCanvas(w, h int) *fakeCanvas {
	return &fakeCanvas{w: w, h: h, cells: make(map[[2]int]rune)}
}

func (c *fakeCanvas) SetContent(x, y int, primary rune, combining []rune, style tcell.Style) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[[2]int{x, y}] = primary
}

func (c *fakeCanvas) Size() (int, int) {
	return c.w, c.h
}

func (c *fakeCanvas) row(y int) string {
	var b strings.Builder
	for x := 0; x < c.w; x++ {
		r, ok := c.cells[[2]int{x, y}]
		if !ok {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *fakeCanvas) contains(s string) bool {
	for y := 0; y < c.h; y++ {
		if strings.Contains(c.row(y), s) {
			return true
		}
	}
	return false
}

func (c *fakeCanvas) String() string {
	var b strings.Builder
	for y := 0; y < c.h; y++ {
		b.WriteString(strings.TrimRight(c.row(y), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// newTestGame builds a game whose lookups point at a closed port.
func newTestGame(t *testing.T) *Game {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewGame(ctx, GameOptions{
		Seed:           1,
		MatchmakingURL: "http://127.0.0.1:1/",
		PublicIPURL:    "http://127.0.0.1:1/",
	})
}

// hostLocally starts a loopback server with a host player and waits in
// PreGame.
func hostLocally(t *testing.T, g *Game) {
	t.Helper()
	lo := net.ParseIP("127.0.0.1")
	if err := g.Listen(ListenOptions{BindIP: lo, PublicIP: lo, HostPlayer: true}); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(g.Disconnect)
	g.Step(time.Now())
	if s := g.App().State.Current(); s != StatePreGame {
		t.Fatalf("state = %v, want PreGame", s)
	}
}
