package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/mdsim/internal/config"
)

// Picker lists the presets and opens the live view on the chosen one.
type Picker struct {
	names  []string
	cursor int
	err    error
	live   *Model
}

func NewPicker() Picker {
	return Picker{names: config.ListPresets()}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.live != nil {
		next, cmd := p.live.Update(msg)
		lm := next.(Model)
		p.live = &lm
		return p, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.names)-1 {
			p.cursor++
		}
	case "enter", " ":
		m, err := NewModel(config.GetPreset(p.names[p.cursor]))
		if err != nil {
			p.err = err
			return p, nil
		}
		p.live = &m
		return p, m.Init()
	}
	return p, nil
}

func (p Picker) View() string {
	if p.live != nil {
		return p.live.View()
	}

	var b strings.Builder
	b.WriteString("\n  " + Title("MDSIM") + "\n  " + mutedStyle().Render("molecular dynamics presets") + "\n  " + Separator(26) + "\n\n")
	for i, name := range p.names {
		cfg := config.Presets[name]
		desc := fmt.Sprintf("%s %s, N=%d", cfg.Integrator, cfg.Potential, cfg.System.Particles)
		if i == p.cursor {
			b.WriteString("  " + accentStyle().Render("▸ "+fmt.Sprintf("%-10s", name)) + " " + Value(desc) + "\n")
		} else {
			b.WriteString("    " + mutedStyle().Render(fmt.Sprintf("%-10s %s", name, desc)) + "\n")
		}
	}
	if p.err != nil {
		b.WriteString("\n  " + p.err.Error() + "\n")
	}
	b.WriteString("\n  " + mutedStyle().Render("j/k navigate  enter start  q quit") + "\n")
	return b.String()
}

// RunPicker opens the preset picker and blocks until it exits.
func RunPicker() error {
	_, err := tea.NewProgram(NewPicker(), tea.WithAltScreen()).Run()
	return err
}
