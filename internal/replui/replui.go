// Package replui provides the interactive BubbleTea predict console: a
// debounced textinput-driven query loop that shows a single line of text
// and its top predicted labels.
package replui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/screenager/fasttext/internal/fasttext"
	"github.com/screenager/fasttext/internal/reload"
)

var (
	colorAccent  = lipgloss.Color("#7C6AF7")
	colorDim     = lipgloss.Color("#555555")
	colorMuted   = lipgloss.Color("#888888")
	colorText    = lipgloss.Color("#DDDDDD")
	colorSubdued = lipgloss.Color("#444444")
	colorScore   = lipgloss.Color("#5ECEF5")
	colorErr     = lipgloss.Color("#FF6B6B")

	sTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	sDim     = lipgloss.NewStyle().Foreground(colorDim)
	sMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	sScore   = lipgloss.NewStyle().Foreground(colorScore).Bold(true)
	sLabel   = lipgloss.NewStyle().Foreground(colorText)
	sErr     = lipgloss.NewStyle().Foreground(colorErr)
	sDivider = lipgloss.NewStyle().Foreground(colorSubdued)
	sHint    = lipgloss.NewStyle().Foreground(colorDim).Background(lipgloss.Color("#111111"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type spinTickMsg struct{}

func spinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return spinTickMsg{} })
}

type (
	predictMsg  []fasttext.WordScore
	errMsg      struct{ err error }
	debounceMsg struct {
		text string
		id   int
	}
)

// Model is the BubbleTea predict console. It reads the active Predictor
// through a reload.Watcher so a model reload on disk is picked up on the
// very next keystroke, without restarting the program.
type Model struct {
	watcher   *reload.Watcher
	k         int
	threshold float32

	input      textinput.Model
	preds      []fasttext.WordScore
	lastText   string
	err        error
	width      int
	height     int
	predicting bool
	spinFrame  int
	debounceID int
}

// New creates a predict console backed by w, returning up to k predictions
// scoring at or above threshold for each line typed.
func New(w *reload.Watcher, k int, threshold float32) Model {
	ti := textinput.New()
	ti.Placeholder = "type a line of text…"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 60
	ti.PromptStyle = sAccent
	ti.Prompt = "❯ "
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	return Model{watcher: w, k: k, threshold: threshold, input: ti}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, spinTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 8
		return m, nil

	case spinTickMsg:
		m.spinFrame = (m.spinFrame + 1) % len(spinnerFrames)
		return m, spinTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q", "esc":
			return m, tea.Quit
		}

	case debounceMsg:
		if msg.id == m.debounceID && msg.text == m.input.Value() {
			if strings.TrimSpace(msg.text) == "" {
				m.predicting = false
				m.preds = nil
				return m, nil
			}
			m.predicting = true
			m.lastText = msg.text
			return m, predictCmd(m.watcher.Current(), msg.text, m.k, m.threshold)
		}
		return m, nil

	case predictMsg:
		m.predicting = false
		m.preds = []fasttext.WordScore(msg)
		m.err = nil
		return m, nil

	case errMsg:
		m.predicting = false
		m.err = msg.err
		return m, nil
	}

	prevVal := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prevVal {
		m.debounceID++
		id := m.debounceID
		text := m.input.Value()
		return m, tea.Batch(cmd, debounceCmd(text, id, 200*time.Millisecond))
	}
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	w := m.width
	divider := sDivider.Render(strings.Repeat("─", clamp(w-2, 10, 200)))

	fmt.Fprintln(&b, "  "+sTitle.Render("fasttext")+"  "+sMuted.Render("predict console"))
	fmt.Fprintln(&b, "  "+m.input.View())
	fmt.Fprintln(&b, "  "+divider)

	switch {
	case m.err != nil:
		fmt.Fprintln(&b, sErr.Render("  error: "+m.err.Error()))
	case m.predicting:
		frame := spinnerFrames[m.spinFrame]
		fmt.Fprintln(&b, "  "+sAccent.Render(frame)+"  "+sMuted.Render("predicting…"))
	case m.input.Value() == "":
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  Type a line of text to see its top predicted labels."))
	case len(m.preds) == 0:
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  no labels scored above threshold for ")+sAccent.Render("\""+m.lastText+"\""))
	default:
		for i, p := range m.preds {
			fmt.Fprintf(&b, "  %s  %s\n", sScore.Render(fmt.Sprintf("%.4f", p.Score)), sLabel.Render(p.Word))
			if i >= 19 {
				fmt.Fprintf(&b, "  %s\n", sDim.Render(fmt.Sprintf("… %d more", len(m.preds)-i-1)))
				break
			}
		}
	}

	b.WriteString("\n  " + divider + "\n")
	fmt.Fprint(&b, sHint.Render("  type to predict  esc/^q quit"+strings.Repeat(" ", clamp(w-35, 0, 200))))
	return b.String()
}

func debounceCmd(text string, id int, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return debounceMsg{text: text, id: id}
	}
}

func predictCmd(p *fasttext.Predictor, text string, k int, threshold float32) tea.Cmd {
	return func() tea.Msg {
		preds, err := p.Predict(text, k, threshold)
		if err != nil {
			return errMsg{err}
		}
		return predictMsg(preds)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
