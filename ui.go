package main

import (
	"time"

	"github.com/gdamore/tcell/v2"
)

type uiKey uint8

const (
	keyNone uiKey = iota
	keyRune
	keyUp
	keyDown
	keyLeft
	keyRight
	keyEnter
	keyEscape
	keyBackspace
	keyTab
	keyQuit
)

// keyPress is a terminal key event reduced to what the front-end reacts to.
type keyPress struct {
	key uiKey
	ch  rune
}

func translateKey(ev *tcell.EventKey) keyPress {
	switch ev.Key() {
	case tcell.KeyRune:
		return keyPress{key: keyRune, ch: ev.Rune()}
	case tcell.KeyUp:
		return keyPress{key: keyUp}
	case tcell.KeyDown:
		return keyPress{key: keyDown}
	case tcell.KeyLeft:
		return keyPress{key: keyLeft}
	case tcell.KeyRight:
		return keyPress{key: keyRight}
	case tcell.KeyEnter:
		return keyPress{key: keyEnter}
	case tcell.KeyEscape:
		return keyPress{key: keyEscape}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return keyPress{key: keyBackspace}
	case tcell.KeyTab:
		return keyPress{key: keyTab}
	case tcell.KeyCtrlC:
		return keyPress{key: keyQuit}
	}
	return keyPress{}
}

// actionForKey maps a key to a ship action. Arrows and WASD both work.
func actionForKey(k keyPress) (PlayerAction, bool) {
	switch k.key {
	case keyLeft:
		return ActionTurnLeft, true
	case keyRight:
		return ActionTurnRight, true
	case keyUp:
		return ActionThrust, true
	case keyRune:
		switch k.ch {
		case 'a', 'A':
			return ActionTurnLeft, true
		case 'd', 'D':
			return ActionTurnRight, true
		case 'w', 'W':
			return ActionThrust, true
		case ' ':
			return ActionShoot, true
		}
	}
	return 0, false
}

// UI is the terminal front-end. Events are read on their own goroutine and
// handled on the game loop.
type UI struct {
	screen tcell.Screen
	events chan tcell.Event
	done   chan struct{}

	hold        KeyHold
	menu        menu
	confirmQuit bool
}

// NewUI takes over the terminal.
func NewUI(screen tcell.Screen) (*UI, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	u := newUI(screen)
	go u.poll()
	return u, nil
}

func newUI(screen tcell.Screen) *UI {
	return &UI{
		screen: screen,
		events: make(chan tcell.Event, 100),
		done:   make(chan struct{}),
		menu:   newMenu(),
	}
}

func (u *UI) poll() {
	for {
		ev := u.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case u.events <- ev:
		case <-u.done:
			return
		}
	}
}

// Close gives the terminal back.
func (u *UI) Close() {
	close(u.done)
	u.screen.Fini()
}

// Update handles pending terminal events and publishes the held actions as
// the local input.
func (u *UI) Update(g *Game, now time.Time) {
	for handled := false; !handled; {
		select {
		case ev := <-u.events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				u.handleKey(g, translateKey(ev), now)
			case *tcell.EventResize:
				u.screen.Sync()
			}
		default:
			handled = true
		}
	}
	if g.app.State.Current() == StatePlaying && !u.confirmQuit {
		g.app.LocalInput = u.hold.State(now)
	} else {
		u.hold.Clear()
		g.app.LocalInput = ActionStateData{}
	}
}

func (u *UI) handleKey(g *Game, k keyPress, now time.Time) {
	if k.key == keyQuit {
		g.Quit()
		return
	}
	switch g.app.State.Current() {
	case StateLoading:
	case StateMainMenu:
		u.confirmQuit = false
		u.menu.handleKey(g, k)
	default:
		u.handleInGameKey(g, k, now)
	}
}

func (u *UI) handleInGameKey(g *Game, k keyPress, now time.Time) {
	if u.confirmQuit {
		switch {
		case k.key == keyRune && (k.ch == 'y' || k.ch == 'Y'):
			u.confirmQuit = false
			g.Disconnect()
		case k.key == keyEscape, k.key == keyRune && (k.ch == 'n' || k.ch == 'N'):
			u.confirmQuit = false
		}
		return
	}
	if k.key == keyEscape {
		u.confirmQuit = true
		return
	}
	if act, ok := actionForKey(k); ok {
		u.hold.Touch(act, now)
	}
}

// Draw renders the current frame.
func (u *UI) Draw(g *Game) {
	u.screen.Clear()
	u.render(u.screen, g)
	u.screen.Show()
}
