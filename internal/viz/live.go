package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/sim"
)

const (
	canvasCols      = 40
	canvasRows      = 20
	historyCapacity = 400
	frameInterval   = time.Second / 30
	maxStepsPerTick = 256
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps one system between frames and draws it.
type Model struct {
	cfg   *config.Config
	sys   *dynamo.System
	integ integrators.Integrator

	step          int
	stepsPerFrame int
	running       bool
	err           error
	e0            float64

	canvas   *Canvas
	camera   *Camera
	energy   []float64
	temp     []float64
	showHelp bool
}

// NewModel builds the system cfg describes. The view runs until cfg.Steps
// steps have been taken or the user quits.
func NewModel(cfg *config.Config) (Model, error) {
	m := Model{
		cfg:           cfg,
		stepsPerFrame: 1,
		canvas:        NewCanvas(canvasCols, canvasRows),
		camera:        NewCamera(),
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m *Model) reset() error {
	sys, integ, err := experiment.Build(m.cfg)
	if err != nil {
		return err
	}
	m.sys, m.integ = sys, integ
	m.step, m.err = 0, nil
	m.running = true
	m.energy = m.energy[:0]
	m.temp = m.temp[:0]
	m.e0 = math.NaN()
	return nil
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "+", "=":
			m.stepsPerFrame = min(maxStepsPerTick, m.stepsPerFrame*2)
		case "-", "_":
			m.stepsPerFrame = max(1, m.stepsPerFrame/2)
		case "left", "h":
			m.camera.Rotate(-0.1, 0)
		case "right", "l":
			m.camera.Rotate(0.1, 0)
		case "up", "k":
			m.camera.Rotate(0, 0.1)
		case "down", "j":
			m.camera.Rotate(0, -0.1)
		case "Z":
			m.camera.ZoomIn()
		case "z":
			m.camera.ZoomOut()
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance takes up to stepsPerFrame steps and records one history point.
func (m *Model) advance() {
	for i := 0; i < m.stepsPerFrame && m.step < m.cfg.Steps; i++ {
		if err := m.integ.Step(m.sys); err != nil {
			m.err = &dynamo.SimulationError{Step: m.step + 1, Time: float64(m.step+1) * m.integ.Timestep(), Wrapped: err}
			m.running = false
			return
		}
		m.step++
	}
	if m.step >= m.cfg.Steps {
		m.running = false
	}
	if math.IsNaN(m.e0) {
		m.e0 = m.sys.TotalEnergy()
	}
	m.energy = pushCapped(m.energy, m.sys.TotalEnergy())
	m.temp = pushCapped(m.temp, m.sys.InstantTemperature())
}

func pushCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Bad).Render("FAILED")
	case m.step >= m.cfg.Steps:
		return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Good).Render("DONE")
	case !m.running:
		return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Warn).Render("PAUSED")
	}
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Good).Render("RUNNING")
}

func (m Model) View() string {
	DrawSystem(m.canvas, m.camera, m.sys)
	canvasView := panelStyle().Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(Title(strings.ToUpper(m.cfg.Name)) + "  " + m.status() + "\n\n")

	row := func(label, value string) {
		s.WriteString(Label(label) + Value(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d / %d", m.step, m.cfg.Steps))
	row("Time", fmt.Sprintf("%.3f", float64(m.step)*m.integ.Timestep()))
	row("Particles", fmt.Sprintf("%d", m.sys.NumParticles()))
	row("Kinetic", fmt.Sprintf("%.4f", m.sys.KineticEnergy()))
	row("Potential", fmt.Sprintf("%.4f", m.sys.PotentialEnergy()))
	row("Total", fmt.Sprintf("%.4f", m.sys.TotalEnergy()))
	row("Temp", fmt.Sprintf("%.4f (target %.3g)", m.sys.InstantTemperature(), m.sys.TargetTemperature()))
	if !math.IsNaN(m.e0) && m.e0 != 0 {
		row("Drift", fmt.Sprintf("%.2e", math.Abs(m.sys.TotalEnergy()-m.e0)/math.Abs(m.e0)))
	}
	if nh, ok := m.integ.(*integrators.NoseHoover); ok {
		row("Gamma", fmt.Sprintf("%+.4f", nh.Gamma()))
	}
	row("Rebuilds", fmt.Sprintf("%d", sim.Builds(m.integ)))
	row("Speed", fmt.Sprintf("%d steps/frame", m.stepsPerFrame))
	s.WriteString("\n" + ProgressBar(float64(m.step)/float64(m.cfg.Steps), 30) + "\n")

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("total energy"))
		s.WriteString("\n" + accentStyle().Render(chart) + "\n")
	}
	if len(m.temp) > 1 {
		s.WriteString("\n" + Label("T trend") + Sparkline(m.temp, 36) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Bad).Width(48).Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + mutedStyle().Render("SP:Pause R:Reset Q:Quit +/-:Speed ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, panelStyle().Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space    pause/resume
  R        rebuild the system from its config
  + / -    double/halve steps per frame
  Arrows   rotate the box (also h j k l)
  Z / z    zoom in/out
  T        cycle themes
  ?        toggle this help
  Q        quit
`

// RunLive opens the live view for cfg and blocks until it exits.
func RunLive(cfg *config.Config) error {
	m, err := NewModel(cfg)
	if err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
