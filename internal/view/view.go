// Package view draws a search session on a terminal: a heat map of the
// active objective over its first two coordinates, the points explored in
// the latest frames, a progress bar and the status line.
package view

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/copyleftdev/landscape/internal/functions"
	"github.com/copyleftdev/landscape/internal/logging"
	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/session"
)

// maxTrail bounds the explored points kept on screen.
const maxTrail = 2000

// Footer rows below the heat map: progress bar and status line.
const footerRows = 2

var (
	styleBackground = tcell.StyleDefault.Background(tcell.ColorBlack)
	styleStatus     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	styleProgress   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack)
	colorTrail      = tcell.ColorWhite
	colorBest       = tcell.ColorRed
)

type cell struct {
	x, y int
}

// Viewer drives a session from a terminal screen.
type Viewer struct {
	screen   tcell.Screen
	sess     *session.Session
	logger   *logging.Logger
	interval time.Duration

	// heat map cache, rebuilt when the problem or the screen size changes
	heat    [][]tcell.Color
	heatKey heatKey

	trail  []cell
	active int
	status string
}

type heatKey struct {
	function string
	dims     int
	w, h     int
}

// New creates a viewer drawing sess on screen, advancing one frame every
// interval. The screen must already be initialised. A nil logger discards.
func New(screen tcell.Screen, sess *session.Session, logger *logging.Logger, interval time.Duration) *Viewer {
	if logger == nil {
		logger = logging.New(logging.InfoLevel, io.Discard)
	}
	return &Viewer{
		screen:   screen,
		sess:     sess,
		logger:   logger,
		interval: interval,
		active:   sess.Info().Active,
	}
}

// Run processes key events and frames until the user quits or ctx ends.
func (v *Viewer) Run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok || !v.HandleEvent(ev) {
				return
			}
			v.Draw()
		case <-ticker.C:
			v.Record(v.sess.Frame())
			v.Draw()
		}
	}
}

// HandleEvent applies a key or resize event and reports whether the viewer
// should keep running.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		return v.handleKey(ev)
	}
	return true
}

func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		v.sess.Prev()
		return true
	case tcell.KeyRight:
		v.sess.Next()
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case ' ':
		paused := v.sess.TogglePause()
		v.logger.Debug("Pause toggled", map[string]interface{}{"paused": paused})
	case 'n':
		v.Record(v.sess.Step())
	case '*':
		v.sess.DoubleSteps()
	case '/':
		v.sess.HalveSteps()
	case '<':
		v.sess.Prev()
	case '>':
		v.sess.Next()
	case 'f':
		v.sess.ToggleForever()
	case 'a':
		v.sess.SetRunAll(!v.sess.Info().RunAll)
	case 'r':
		if _, err := v.sess.Restart(v.sess.Info().Active); err != nil {
			v.logger.Error("Restart failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return true
}

// Record keeps the points explored in f for drawing.
func (v *Viewer) Record(f session.Frame) {
	if f.Skipped {
		return
	}
	p, dims := v.sess.ActiveProblem()
	w, h := v.mapSize()
	for _, e := range f.Trace {
		if c, ok := project(e.Point, p.Bounds, dims, w, h); ok {
			v.trail = append(v.trail, c)
		}
	}
	if n := len(v.trail); n > maxTrail {
		v.trail = append(v.trail[:0], v.trail[n-maxTrail:]...)
	}
}

// Trail returns the number of explored points currently kept.
func (v *Viewer) Trail() int {
	return len(v.trail)
}

// Status returns the last drawn status line.
func (v *Viewer) Status() string {
	return v.status
}

func (v *Viewer) mapSize() (int, int) {
	w, h := v.screen.Size()
	h -= footerRows
	if h < 0 {
		h = 0
	}
	return w, h
}

// Draw renders the whole screen.
func (v *Viewer) Draw() {
	info := v.sess.Info()
	if info.Active != v.active {
		v.active = info.Active
		v.trail = v.trail[:0]
	}

	v.screen.Clear()
	w, h := v.mapSize()
	p, dims := v.sess.ActiveProblem()

	v.drawHeat(p, dims, w, h)
	for _, c := range v.trail {
		v.plot(c, '·', colorTrail)
	}
	if cur := info.Current; cur.BestPoint != nil {
		if c, ok := project(cur.BestPoint, p.Bounds, dims, w, h); ok {
			v.plot(c, 'X', colorBest)
		}
	}

	sw, sh := v.screen.Size()
	v.drawProgress(info, sw, sh-2)

	v.status = info.Current.String()
	if info.Paused {
		v.status = "[paused] " + v.status
	}
	if info.RunAll {
		v.status = "[all] " + v.status
	}
	drawText(v.screen, 0, sh-1, sw, v.status, styleStatus)

	v.screen.Show()
}

func (v *Viewer) plot(c cell, r rune, fg tcell.Color) {
	bg := tcell.ColorBlack
	if c.y < len(v.heat) && c.x < len(v.heat[c.y]) {
		bg = v.heat[c.y][c.x]
	}
	v.screen.SetContent(c.x, c.y, r, nil, tcell.StyleDefault.Foreground(fg).Background(bg))
}

func (v *Viewer) drawHeat(p optimization.Problem, dims, w, h int) {
	key := heatKey{function: p.Name, dims: dims, w: w, h: h}
	if key != v.heatKey || v.heat == nil {
		v.heat = heatMap(p, dims, w, h)
		v.heatKey = key
		v.logger.Debug("Heat map rebuilt", map[string]interface{}{
			"function": p.Name,
			"width":    w,
			"height":   h,
		})
	}
	for y, row := range v.heat {
		for x, c := range row {
			v.screen.SetContent(x, y, ' ', nil, styleBackground.Background(c))
		}
	}
}

func (v *Viewer) drawProgress(info session.Snapshot, w, y int) {
	if y < 0 {
		return
	}
	filled := int(math.Round(info.Current.Fraction * float64(w)))
	for x := 0; x < w; x++ {
		r := '░'
		if x < filled {
			r = '█'
		}
		v.screen.SetContent(x, y, r, nil, styleProgress)
	}
}

func drawText(s tcell.Screen, x, y, maxWidth int, text string, style tcell.Style) {
	if y < 0 {
		return
	}
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			return
		}
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
}

// project maps a point to the cell showing it.
func project(pt []float64, b optimization.Bounds, dims, w, h int) (cell, bool) {
	if len(pt) == 0 || w <= 0 || h <= 0 || b.Width() <= 0 {
		return cell{}, false
	}
	x := int((pt[0] - b.Low) / b.Width() * float64(w))
	y := h / 2
	if dims > 1 && len(pt) > 1 {
		y = int((b.High - pt[1]) / b.Width() * float64(h))
	}
	x = clampInt(x, 0, w-1)
	y = clampInt(y, 0, h-1)
	return cell{x: x, y: y}, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// heatMap samples the objective on a w x h grid and colours it from cold
// (lowest) to hot (highest).
func heatMap(p optimization.Problem, dims, w, h int) [][]tcell.Color {
	values := functions.Grid(p, dims, w, h)
	lo, hi, _ := functions.Range(values)

	colors := make([][]tcell.Color, h)
	for y, row := range values {
		colors[y] = make([]tcell.Color, w)
		for x, val := range row {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				colors[y][x] = tcell.ColorBlack
				continue
			}
			t := 0.0
			if hi > lo {
				t = (val - lo) / (hi - lo)
			}
			colors[y][x] = heatColor(t)
		}
	}
	return colors
}

// heatColor maps t in [0, 1] along blue, cyan, green, yellow, red.
func heatColor(t float64) tcell.Color {
	stops := [][3]float64{
		{0, 0, 139},
		{0, 170, 200},
		{34, 139, 34},
		{255, 215, 0},
		{200, 0, 0},
	}
	t = math.Max(0, math.Min(1, t))
	seg := t * float64(len(stops)-1)
	i := int(seg)
	if i >= len(stops)-1 {
		i = len(stops) - 2
	}
	f := seg - float64(i)
	a, b := stops[i], stops[i+1]
	return tcell.NewRGBColor(
		int32(a[0]+(b[0]-a[0])*f),
		int32(a[1]+(b[1]-a[1])*f),
		int32(a[2]+(b[2]-a[2])*f),
	)
}
