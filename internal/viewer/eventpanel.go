package viewer

import (
	"fmt"
	"image/color"

	"github.com/Garsondee/boid-flock/internal/sim"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"
)

const (
	panelWidth      = 340
	panelMaxEntries = 80
	panelLineHeight = 14
	panelHighlight  = 3
)

var (
	panelBg     = color.RGBA{R: 10, G: 12, B: 14, A: 235}
	panelTitle  = color.RGBA{R: 22, G: 28, B: 34, A: 255}
	panelRule   = color.RGBA{R: 60, G: 75, B: 90, A: 255}
	panelRecent = color.RGBA{R: 32, G: 40, B: 48, A: 170}
	panelText   = color.RGBA{R: 210, G: 215, B: 220, A: 255}
	roleDot     = color.RGBA{R: 230, G: 190, B: 60, A: 255}
	pathDot     = color.RGBA{R: 90, G: 170, B: 230, A: 255}
)

// EventPanel is a fixed-size ring buffer of role and path events shown
// beside the map.
type EventPanel struct {
	entries []sim.Event
	head    int
	count   int
}

// NewEventPanel creates an empty panel.
func NewEventPanel() *EventPanel {
	return &EventPanel{entries: make([]sim.Event, panelMaxEntries)}
}

// Add appends an event, overwriting the oldest once full.
func (p *EventPanel) Add(e sim.Event) {
	p.entries[p.head] = e
	p.head = (p.head + 1) % panelMaxEntries
	if p.count < panelMaxEntries {
		p.count++
	}
}

// Pull copies role and path events at or after tick since from the log.
func (p *EventPanel) Pull(log *sim.EventLog, since int) {
	for _, e := range log.Entries() {
		if e.Tick < since {
			continue
		}
		if e.Category == sim.CatRole || e.Category == sim.CatPath {
			p.Add(e)
		}
	}
}

// Recent returns entries oldest first.
func (p *EventPanel) Recent() []sim.Event {
	out := make([]sim.Event, p.count)
	for i := range p.count {
		out[i] = p.entries[(p.head-p.count+i+panelMaxEntries)%panelMaxEntries]
	}
	return out
}

// Clear drops every entry.
func (p *EventPanel) Clear() {
	p.head, p.count = 0, 0
}

// Draw renders the panel as a column starting at panelX.
func (p *EventPanel) Draw(screen *ebiten.Image, panelX, panelH int) {
	face := basicfont.Face7x13
	vector.FillRect(screen, float32(panelX), 0, panelWidth, float32(panelH), panelBg, false)
	vector.StrokeLine(screen, float32(panelX), 0, float32(panelX), float32(panelH), 1, panelRule, false)
	vector.FillRect(screen, float32(panelX), 0, panelWidth, 18, panelTitle, false)
	text.Draw(screen, "EVENTS", face, panelX+8, 13, panelText)
	vector.StrokeLine(screen, float32(panelX), 18, float32(panelX+panelWidth), 18, 1, panelRule, false)

	entries := p.Recent()
	if fit := (panelH - 24) / panelLineHeight; len(entries) > fit {
		entries = entries[len(entries)-fit:]
	}

	y := 22
	for i, e := range entries {
		if i >= len(entries)-panelHighlight {
			vector.FillRect(screen, float32(panelX+2), float32(y), panelWidth-4, panelLineHeight, panelRecent, false)
		}
		dot := pathDot
		if e.Category == sim.CatRole {
			dot = roleDot
		}
		vector.FillRect(screen, float32(panelX+5), float32(y+4), 3, 6, dot, false)
		line := fmt.Sprintf("%5d %-8s %s %s", e.Tick, e.Agent, e.Key, e.Value)
		text.Draw(screen, line, face, panelX+12, y+11, panelText)
		y += panelLineHeight
	}
}
