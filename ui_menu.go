package main

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
)

type menuPage uint8

const (
	pageMain menuPage = iota
	pageBrowser
	pageJoin
	pageCreate
)

var mainMenuItems = []string{"Lobby browser", "Join by IP", "Create game", "Quit"}

// field is one editable line of a form.
type field struct {
	label  string
	value  string
	secret bool
}

// form is a vertical list of fields submitted with Enter.
type form struct {
	title  string
	fields []field
	focus  int
	err    string
}

// handleKey edits the focused field. It returns true when the form is
// submitted.
func (f *form) handleKey(k keyPress) bool {
	switch k.key {
	case keyEnter:
		return true
	case keyUp:
		if f.focus > 0 {
			f.focus--
		}
	case keyDown, keyTab:
		f.focus = (f.focus + 1) % len(f.fields)
	case keyBackspace:
		v := []rune(f.fields[f.focus].value)
		if len(v) > 0 {
			f.fields[f.focus].value = string(v[:len(v)-1])
			f.err = ""
		}
	case keyRune:
		if len(f.fields[f.focus].value) < 64 {
			f.fields[f.focus].value += string(k.ch)
			f.err = ""
		}
	}
	return false
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.fields[i].value)
}

const (
	joinIP = iota
	joinPort
	joinBind
	joinPassword
)

const (
	createName = iota
	createIP
	createPort
	createBind
	createPassword
)

func newJoinForm() form {
	return form{
		title: "Join by IP address",
		fields: []field{
			{label: "IP Address", value: "127.0.0.1"},
			{label: "Port", value: strconv.Itoa(DefaultPort)},
			{label: "Bind IP Address", value: "0.0.0.0"},
			{label: "Password", secret: true},
		},
	}
}

func newCreateForm() form {
	return form{
		title: "Create Game",
		fields: []field{
			{label: "Name", value: "Asteroids Arena"},
			{label: "IP Address (blank: auto)"},
			{label: "Port", value: strconv.Itoa(DefaultPort)},
			{label: "Bind IP Address", value: "0.0.0.0"},
			{label: "Password", secret: true},
		},
	}
}

// connectOptions validates the join form.
func (f *form) connectOptions() (ConnectOptions, error) {
	ip := net.ParseIP(f.value(joinIP))
	if ip == nil {
		return ConnectOptions{}, fmt.Errorf("invalid IP address %q", f.value(joinIP))
	}
	bind := net.ParseIP(f.value(joinBind))
	if bind == nil {
		return ConnectOptions{}, fmt.Errorf("invalid bind IP address %q", f.value(joinBind))
	}
	port, err := parsePort(f.value(joinPort))
	if err != nil {
		return ConnectOptions{}, err
	}
	return ConnectOptions{
		BindIP:   bind,
		ServerIP: ip,
		Port:     port,
		Password: f.fields[joinPassword].value,
	}, nil
}

// listenOptions validates the create form. A blank IP waits for the public
// IP lookup.
func (f *form) listenOptions() (ListenOptions, error) {
	var public net.IP
	if s := f.value(createIP); s != "" {
		public = net.ParseIP(s)
		if public == nil {
			return ListenOptions{}, fmt.Errorf("invalid IP address %q", s)
		}
	}
	bind := net.ParseIP(f.value(createBind))
	if bind == nil {
		return ListenOptions{}, fmt.Errorf("invalid bind IP address %q", f.value(createBind))
	}
	port, err := parsePort(f.value(createPort))
	if err != nil {
		return ListenOptions{}, err
	}
	return ListenOptions{
		BindIP:     bind,
		PublicIP:   public,
		Port:       port,
		Name:       f.value(createName),
		Password:   f.fields[createPassword].value,
		HostPlayer: true,
	}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}

// menu is the main menu and its sub pages.
type menu struct {
	page     menuPage
	cursor   int
	selected int
	join     form
	create   form
}

func newMenu() menu {
	return menu{join: newJoinForm(), create: newCreateForm()}
}

func (m *menu) handleKey(g *Game, k keyPress) {
	switch m.page {
	case pageMain:
		m.handleMainKey(g, k)
	case pageBrowser:
		m.handleBrowserKey(g, k)
	case pageJoin:
		if k.key == keyEscape {
			m.page = pageMain
			return
		}
		if !m.join.handleKey(k) {
			return
		}
		opts, err := m.join.connectOptions()
		if err != nil {
			m.join.err = err.Error()
			return
		}
		if err := g.Connect(opts); err != nil {
			log.Printf("connect: %v", err)
			m.join.err = err.Error()
			return
		}
		m.page = pageMain
	case pageCreate:
		if k.key == keyEscape {
			m.page = pageMain
			return
		}
		if m.create.value(createIP) == "" {
			if ip, ok := g.PublicIP(); ok {
				m.create.fields[createIP].value = ip.String()
			}
		}
		if !m.create.handleKey(k) {
			return
		}
		opts, err := m.create.listenOptions()
		if err != nil {
			m.create.err = err.Error()
			return
		}
		if err := g.Listen(opts); err != nil {
			log.Printf("listen: %v", err)
			m.create.err = err.Error()
			return
		}
		m.page = pageMain
	}
}

func (m *menu) handleMainKey(g *Game, k keyPress) {
	switch k.key {
	case keyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case keyDown, keyTab:
		m.cursor = (m.cursor + 1) % len(mainMenuItems)
	case keyEscape:
		m.cursor = len(mainMenuItems) - 1
	case keyEnter:
		switch m.cursor {
		case 0:
			m.page = pageBrowser
			m.selected = 0
		case 1:
			m.page = pageJoin
			m.join.err = ""
		case 2:
			m.page = pageCreate
			m.create.err = ""
		case 3:
			g.Quit()
		}
	}
}

func (m *menu) handleBrowserKey(g *Game, k keyPress) {
	lobbies := g.Servers()
	switch k.key {
	case keyEscape:
		m.page = pageMain
	case keyUp:
		if m.selected > 0 {
			m.selected--
		}
	case keyDown:
		if m.selected < len(lobbies)-1 {
			m.selected++
		}
	case keyRune:
		if k.ch == 'j' || k.ch == 'J' {
			m.page = pageJoin
		}
	case keyEnter:
		if m.selected >= len(lobbies) {
			return
		}
		lobby := lobbies[m.selected]
		m.join.fields[joinIP].value = lobby.IP
		m.join.fields[joinPort].value = strconv.Itoa(DefaultPort)
		m.join.err = ""
		if lobby.HasPassword {
			m.join.focus = joinPassword
			m.page = pageJoin
			return
		}
		opts, err := m.join.connectOptions()
		if err != nil {
			m.join.err = err.Error()
			m.page = pageJoin
			return
		}
		if err := g.Connect(opts); err != nil {
			log.Printf("connect: %v", err)
		}
	}
}
