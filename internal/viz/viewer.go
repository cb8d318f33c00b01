package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/tether"
)

const trailCapacity = 2000

// ResultMsg carries a finished map build into the viewer.
type ResultMsg struct {
	Result *mapping.Result
}

// LinkMsg carries one sample of the tethered link.
type LinkMsg struct {
	Time   float64
	State  tether.LinkState
	Target tether.Target
}

// DoneMsg tells the viewer the simulation finished.
type DoneMsg struct {
	Err error
}

// Viewer is a Bubble Tea model showing the latest map slice next to the
// link's top-down trail.
type Viewer struct {
	result  *mapping.Result
	builds  int
	failed  int
	lastErr error

	axis  Axis
	layer int
	theme Theme

	trailX, trailY []float64
	errHistory     []float64
	last           LinkMsg
	done           bool
	simErr         error

	canvas        *Canvas
	width, height int
}

func NewViewer(theme Theme) Viewer {
	return Viewer{
		axis:   AxisZ,
		theme:  theme,
		canvas: NewCanvas(32, 12),
		width:  100,
		height: 30,
	}
}

func (m Viewer) Init() tea.Cmd { return nil }

func (m Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "right", "l":
			m.shiftLayer(1)
		case "left", "h":
			m.shiftLayer(-1)
		case "a":
			m.axis = (m.axis + 1) % 3
			m.layer = m.middleLayer()
		case "t":
			m.theme = nextTheme(m.theme)
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case ResultMsg:
		m.builds++
		if msg.Result.OK() {
			m.result = msg.Result
			m.layer = m.middleLayer()
		} else {
			m.failed++
			m.lastErr = msg.Result.Err
		}
	case LinkMsg:
		m.last = msg
		p := msg.State.Pose.Position
		m.trailX = appendCapped(m.trailX, p.X())
		m.trailY = appendCapped(m.trailY, p.Y())
		m.errHistory = appendCapped(m.errHistory, msg.Target.Pose.Position.Sub(p).Len())
	case DoneMsg:
		m.done = true
		m.simErr = msg.Err
	}
	return m, nil
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > trailCapacity {
		s = s[len(s)-trailCapacity:]
	}
	return s
}

func (m *Viewer) middleLayer() int {
	if m.result == nil {
		return 0
	}
	return Layers(m.result.SDF, m.axis) / 2
}

func (m *Viewer) shiftLayer(d int) {
	if m.result == nil {
		return
	}
	n := Layers(m.result.SDF, m.axis)
	m.layer = (m.layer + d + n) % n
}

func (m Viewer) View() string {
	var left strings.Builder
	left.WriteString(HeaderStyle.Render("MAP") + "\n")
	if m.result == nil {
		left.WriteString(Subtle.Render("waiting for first build…") + "\n")
	} else {
		slice, err := RenderSlice(m.result.SDF, m.axis, m.layer, m.theme)
		if err != nil {
			slice = StatusFailed.Render(err.Error())
		}
		left.WriteString(fmt.Sprintf("%s  %s=%d/%d\n", m.result.RequestID, m.axis, m.layer, Layers(m.result.SDF, m.axis)-1))
		left.WriteString(slice)
		left.WriteString(Legend(m.result.SDF, m.theme) + "\n")
	}

	var right strings.Builder
	right.WriteString(HeaderStyle.Render("TETHER") + "\n")
	right.WriteString(Metric("Time", fmt.Sprintf("%.2fs", m.last.Time)) + "\n")
	p := m.last.State.Pose.Position
	right.WriteString(Metric("Position", fmt.Sprintf("%.2f %.2f %.2f", p.X(), p.Y(), p.Z())) + "\n")
	if n := len(m.errHistory); n > 0 {
		right.WriteString(Metric("Error", fmt.Sprintf("%.3f", m.errHistory[n-1])) + "\n")
	}
	right.WriteString(SparklineChart(m.errHistory, 32) + "\n")

	m.canvas.Clear()
	if lo, hi, ok := m.window(); ok {
		m.canvas.DrawPath(m.trailX, m.trailY, lo[0], hi[0], lo[1], hi[1])
	}
	right.WriteString(Panel.Render(m.canvas.String()) + "\n")

	builds := fmt.Sprintf("%d built, %d failed", m.builds, m.failed)
	right.WriteString(Metric("Maps", builds) + "\n")
	if m.lastErr != nil {
		right.WriteString(StatusFailed.Render(m.lastErr.Error()) + "\n")
	}
	switch {
	case m.done && m.simErr != nil:
		right.WriteString(StatusFailed.Render("simulation failed: "+m.simErr.Error()) + "\n")
	case m.done:
		right.WriteString(StatusOK.Render("simulation finished") + "\n")
	}

	help := KeyHint.Render("←/→ layer  a axis  t theme  q quit")
	body := lipgloss.JoinHorizontal(lipgloss.Top, left.String(), "   ", right.String())
	return body + "\n" + help
}

// window is the x/y extent of the trail view: the map region when one is
// available, otherwise the trail's own bounds.
func (m Viewer) window() (lo, hi [2]float64, ok bool) {
	if m.result != nil {
		r := m.result.Region
		size := r.Size()
		return [2]float64{r.Origin.X, r.Origin.Y}, [2]float64{r.Origin.X + size.X, r.Origin.Y + size.Y}, true
	}
	if len(m.trailX) == 0 {
		return lo, hi, false
	}
	lo = [2]float64{m.trailX[0], m.trailY[0]}
	hi = lo
	for i := range m.trailX {
		lo[0], hi[0] = min(lo[0], m.trailX[i]), max(hi[0], m.trailX[i])
		lo[1], hi[1] = min(lo[1], m.trailY[i]), max(hi[1], m.trailY[i])
	}
	pad := 0.5
	lo[0], lo[1] = lo[0]-pad, lo[1]-pad
	hi[0], hi[1] = hi[0]+pad, hi[1]+pad
	return lo, hi, true
}
