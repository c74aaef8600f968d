package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

// canvas is the part of tcell.Screen the renderer draws on.
type canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (int, int)
}

var (
	styleText   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleError  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleFocus  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	styleArena  = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	styleRock   = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleLaser  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	stylePickup = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
)

var playerColors = [paletteSize]tcell.Color{
	ColorRed:    tcell.ColorRed,
	ColorBlue:   tcell.ColorBlue,
	ColorGreen:  tcell.ColorGreen,
	ColorPurple: tcell.ColorPurple,
	ColorCyan:   tcell.ColorAqua,
	ColorOrange: tcell.ColorOrange,
}

func playerStyle(c PlayerColor) tcell.Style {
	if c < paletteSize {
		return tcell.StyleDefault.Foreground(playerColors[c]).Bold(true)
	}
	return styleText
}

// shipGlyphs point in the eight compass directions, counter-clockwise from
// up, matching rotation 0 facing +Y.
var shipGlyphs = [8]rune{'↑', '↖', '←', '↙', '↓', '↘', '→', '↗'}

func shipGlyph(rotation float64) rune {
	r := NormalizeAngle(rotation)
	if r < 0 {
		r += 2 * math.Pi
	}
	i := int(math.Round(r/(math.Pi/4))) % 8
	return shipGlyphs[i]
}

func drawText(c canvas, x, y int, style tcell.Style, s string) {
	for _, r := range s {
		c.SetContent(x, y, r, nil, style)
		x++
	}
}

func drawCentered(c canvas, y int, style tcell.Style, s string) {
	w, _ := c.Size()
	drawText(c, (w-len([]rune(s)))/2, y, style, s)
}

func (u *UI) render(c canvas, g *Game) {
	switch g.app.State.Current() {
	case StateLoading:
		drawCentered(c, 1, styleTitle, "Loading")
	case StateMainMenu:
		u.menu.render(c, g)
	case StatePreGame:
		renderPreGame(c, g)
	case StatePlaying:
		renderWorld(c, g.app)
		renderHUD(c, g.app)
	case StatePostGame:
		renderWorld(c, g.app)
		renderHUD(c, g.app)
		renderPostGame(c, g.app)
	}
	if u.confirmQuit {
		_, h := c.Size()
		drawCentered(c, h/2, styleTitle, " Quit to menu? Y/N ")
	}
}

func (m *menu) render(c canvas, g *Game) {
	drawCentered(c, 1, styleTitle, "ASTEROIDS ARENA")
	switch m.page {
	case pageMain:
		for i, item := range mainMenuItems {
			style := styleText
			if i == m.cursor {
				style = styleFocus
			}
			drawCentered(c, 4+i*2, style, " "+item+" ")
		}
		if s := g.Status(); s != "" {
			drawCentered(c, 5+len(mainMenuItems)*2, styleError, s)
		}
	case pageBrowser:
		renderBrowser(c, g.Servers(), m.selected)
	case pageJoin:
		m.join.render(c)
	case pageCreate:
		m.create.render(c)
	}
}

func renderBrowser(c canvas, lobbies []Lobby, selected int) {
	drawText(c, 2, 3, styleTitle, "Lobby Browser")
	drawText(c, 2, 5, styleDim, fmt.Sprintf("%-24s %-8s %-8s", "Name", "Players", "Password"))
	if len(lobbies) == 0 {
		drawText(c, 2, 7, styleDim, "no lobbies found")
	}
	for i, l := range lobbies {
		style := styleText
		if i == selected {
			style = styleFocus
		}
		lock := ""
		if l.HasPassword {
			lock = "yes"
		}
		name := l.Name
		if len(name) > 24 {
			name = name[:24]
		}
		drawText(c, 2, 6+i, style, fmt.Sprintf("%-24s %d / %-4d %-8s", name, l.SlotsOccupied, l.PlayerCapacity, lock))
	}
	_, h := c.Size()
	drawText(c, 2, h-2, styleDim, "Enter: join  J: join by IP  Esc: back")
}

func (f *form) render(c canvas) {
	drawText(c, 2, 3, styleTitle, f.title)
	for i, fl := range f.fields {
		y := 5 + i*2
		drawText(c, 2, y, styleDim, fl.label)
		v := fl.value
		if fl.secret {
			v = strings.Repeat("*", len([]rune(v)))
		}
		style := styleText
		if i == f.focus {
			style = styleFocus
			v += "_"
		}
		drawText(c, 28, y, style, v)
	}
	if f.err != "" {
		drawText(c, 2, 6+len(f.fields)*2, styleError, f.err)
	}
	_, h := c.Size()
	drawText(c, 2, h-2, styleDim, "Enter: confirm  Tab: next field  Esc: back")
}

func renderPreGame(c canvas, g *Game) {
	_, h := c.Size()
	if g.app.Role == RoleClient && g.ServerName() == "" {
		drawCentered(c, h/2-1, styleTitle, "Connecting to server")
	} else {
		drawCentered(c, h/2-1, styleTitle, "Waiting for Players")
	}
	if name := g.ServerName(); name != "" {
		drawCentered(c, h/2+1, styleDim, name)
	}
	if srv := g.Server(); srv != nil {
		drawCentered(c, h/2+3, styleDim, srv.JoinURL())
	}
	drawCentered(c, h-2, styleDim, "Esc: leave")
}

// viewport maps world units to terminal cells. Cells are about twice as
// tall as they are wide.
type viewport struct {
	cx, cy int
	scale  float64
}

func newViewport(c canvas) viewport {
	w, h := c.Size()
	hudRows := 2
	span := ArenaStartSize * 1.05
	scale := math.Max(span/float64(w), span/float64(2*(h-hudRows)))
	return viewport{cx: w / 2, cy: hudRows + (h-hudRows)/2, scale: scale}
}

func (v viewport) cell(p mgl64.Vec2) (int, int) {
	x := v.cx + int(math.Round(p.X()/v.scale))
	y := v.cy - int(math.Round(p.Y()/(2*v.scale)))
	return x, y
}

func (v viewport) put(c canvas, p mgl64.Vec2, r rune, style tcell.Style) {
	x, y := v.cell(p)
	w, h := c.Size()
	if x < 0 || y < 2 || x >= w || y >= h {
		return
	}
	c.SetContent(x, y, r, nil, style)
}

var (
	arenas       = donburi.NewQuery(filter.Contains(Arena, Transform))
	collectibles = donburi.NewQuery(filter.Contains(Collectible, Transform))
	rocks        = donburi.NewQuery(filter.Contains(Asteroid, Transform))
	shots        = donburi.NewQuery(filter.Contains(Laser, Transform))
)

func renderWorld(c canvas, a *App) {
	v := newViewport(c)

	arenas.Each(a.World, func(e *donburi.Entry) {
		renderArena(c, v, *Transform.Get(e), Arena.Get(e).CurrentSize)
	})
	rocks.Each(a.World, func(e *donburi.Entry) {
		tf := Transform.Get(e)
		r := Asteroid.Get(e).Scale / 2
		steps := int(math.Max(8, 2*math.Pi*r/v.scale))
		for i := 0; i < steps; i++ {
			t := 2 * math.Pi * float64(i) / float64(steps)
			p := tf.Translation.Add(mgl64.Vec2{r * math.Cos(t), r * math.Sin(t)})
			v.put(c, p, '#', styleRock)
		}
		v.put(c, tf.Translation, 'O', styleRock)
	})
	collectibles.Each(a.World, func(e *donburi.Entry) {
		v.put(c, Transform.Get(e).Translation, '?', stylePickup)
	})
	shots.Each(a.World, func(e *donburi.Entry) {
		v.put(c, Transform.Get(e).Translation, '*', styleLaser)
	})
	players.Each(a.World, func(e *donburi.Entry) {
		tf := Transform.Get(e)
		style := playerStyle(Player.Get(e).Color)
		v.put(c, tf.Translation, shipGlyph(tf.Rotation), style)
		if e.HasComponent(Thruster) && Thruster.Get(e).Level > 0.5 {
			v.put(c, tf.Translation.Sub(tf.Forward().Mul(PlayerRadius*1.5)), '.', style)
		}
	})
}

func renderArena(c canvas, v viewport, tf TransformData, size mgl64.Vec2) {
	half := size.Mul(0.5)
	x0, y0 := v.cell(tf.Translation.Add(mgl64.Vec2{-half.X(), half.Y()}))
	x1, y1 := v.cell(tf.Translation.Add(mgl64.Vec2{half.X(), -half.Y()}))
	for x := x0; x <= x1; x++ {
		c.SetContent(x, y0, '─', nil, styleArena)
		c.SetContent(x, y1, '─', nil, styleArena)
	}
	for y := y0; y <= y1; y++ {
		c.SetContent(x0, y, '│', nil, styleArena)
		c.SetContent(x1, y, '│', nil, styleArena)
	}
	c.SetContent(x0, y0, '┌', nil, styleArena)
	c.SetContent(x1, y0, '┐', nil, styleArena)
	c.SetContent(x0, y1, '└', nil, styleArena)
	c.SetContent(x1, y1, '┘', nil, styleArena)
}

// healthBar renders current/max as a fixed width bar.
func healthBar(h HealthData, width int) string {
	filled := 0
	if h.Max > 0 {
		filled = int(math.Round(float64(width) * Clamp(h.Current/h.Max, 0, 1)))
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderHUD(c canvas, a *App) {
	e, ok := FindPlayer(a.World, a.LocalID)
	if !ok {
		drawText(c, 1, 0, styleDim, fmt.Sprintf("Spectating  players left: %d", players.Count(a.World)))
		return
	}
	p := Player.Get(e)
	style := playerStyle(p.Color)
	drawText(c, 1, 0, style, p.Color.String())
	if e.HasComponent(Health) {
		h := *Health.Get(e)
		drawText(c, 9, 0, style, healthBar(h, 20))
		drawText(c, 31, 0, styleText, fmt.Sprintf("%3.0f/%.0f", h.Current, h.Max))
	}
	x := 42
	if p.PowerUp != nil {
		s := "+" + p.PowerUp.String()
		drawText(c, x, 0, stylePickup, s)
		x += len(s) + 2
	}
	if p.Debuff != nil {
		drawText(c, x, 0, styleError, "-"+p.Debuff.String())
	}
	if e.HasComponent(ArenaResident) && ArenaResident.Get(e).IsOutside {
		drawText(c, 1, 1, styleError, "OUTSIDE THE ARENA")
	}
}

func renderPostGame(c canvas, a *App) {
	_, h := c.Size()
	banner := "Draw"
	style := styleTitle
	if w := a.Winner(); w != nil {
		banner = w.String() + " wins!"
		style = playerStyle(*w)
	}
	drawCentered(c, h/2-1, style, " "+banner+" ")
	drawCentered(c, h/2+1, styleText, fmt.Sprintf("Next round in %.0f", math.Ceil(a.PostGameRemaining())))
}
