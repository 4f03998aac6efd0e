package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/skylab-uav/skyleader/pkg/config"
	"github.com/skylab-uav/skyleader/pkg/input"
	"github.com/skylab-uav/skyleader/pkg/pilot"
	"github.com/skylab-uav/skyleader/pkg/sink"
	"github.com/skylab-uav/skyleader/pkg/sink/sim"
	"github.com/skylab-uav/skyleader/pkg/sink/tello"
)

type FlyCommand struct {
	Sim     bool   `long:"sim" description:"Fly the in-process simulator instead of a real drone"`
	Port    string `long:"port" default:"8888" description:"Local UDP port for the Tello driver"`
	Config  string `long:"config" description:"Configuration file (default skyleader.json)"`
	Vehicle string `long:"vehicle" description:"Vehicle name override"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // menu + log box
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Channel colors - one per command axis
var channelColors = map[string]string{
	"vx":  "196", // red
	"vy":  "208", // orange
	"vz":  "46",  // green
	"yaw": "51",  // cyan
}

var channelOrder = []string{"vx", "vy", "vz", "yaw"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type flyModel struct {
	session  *pilot.Session
	cfg      *config.Config
	held     *input.HeldKeys
	cancel   context.CancelFunc
	done     <-chan error

	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	state    pilot.State
	landing  bool
	quitting bool
	runErr   error
}

func (m *flyModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the session
type statusMsg pilot.Status
type logMsg string
type doneMsg struct{ err error }

func waitForStatus(s *pilot.Session) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-s.Statuses())
	}
}

func waitForLog(s *pilot.Session) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-s.Logs())
	}
}

func waitForDone(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: <-done}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *flyModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *flyModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialFlyModel(s *pilot.Session, cfg *config.Config, held *input.HeldKeys, cancel context.CancelFunc, done <-chan error) flyModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-100, 100),
	)

	for _, name := range channelOrder {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(channelColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return flyModel{
		session: s,
		cfg:     cfg,
		held:    held,
		cancel:  cancel,
		done:    done,
		chart:   &chart,
	}
}

func (m flyModel) Init() tea.Cmd {
	return tea.Batch(
		waitForStatus(m.session),
		waitForLog(m.session),
		waitForDone(m.done),
	)
}

func (m flyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			// Force the landing sequence; the session reports done
			// once the vehicle is grounded.
			m.landing = true
			m.cancel()
			return m, nil
		}
		if cmd, ok := m.cfg.Keys[key]; ok {
			m.held.Press(cmd)
			if cmd == input.Exit {
				m.landing = true
			}
		}
		return m, nil

	case statusMsg:
		st := pilot.Status(msg)
		m.state = st.State
		if st.State == pilot.StateFlying {
			m.chart.PushDataSet("vx", pct(st.VX, m.cfg.XY.Max))
			m.chart.PushDataSet("vy", pct(st.VY, m.cfg.XY.Max))
			m.chart.PushDataSet("vz", pct(st.VZ, m.cfg.Z.Max))
			m.chart.PushDataSet("yaw", pct(st.YawRate, m.cfg.Yaw.Max))
			m.chart.DrawAll()
		}
		return m, waitForStatus(m.session)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.session)

	case doneMsg:
		m.quitting = true
		m.runErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// pct scales a value to percent of its axis maximum for charting.
func pct(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max * 100
}

func (m flyModel) View() string {
	if m.quitting {
		return "Flight session ended.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Skyleader Fly"))
	hz := int(float64(1e9) / float64(m.session.Tick().Nanoseconds()))
	sb.WriteString(fmt.Sprintf(" - %s - %d Hz", m.cfg.Vehicle, hz))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%s]", m.state)))
	if m.landing {
		sb.WriteString(statusStyle.Render("  landing..."))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Key menu
	sb.WriteString(statusStyle.Render(renderMenu(m.cfg.Keys)))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Hold the movement keys to fly")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range channelOrder {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(channelColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

// renderMenu shows the key bindings, one entry per command.
func renderMenu(keys map[string]input.Command) string {
	byCommand := make(map[input.Command]string, len(keys))
	for key, cmd := range keys {
		byCommand[cmd] = key
	}

	var items []string
	for _, cmd := range input.AllCommands() {
		if key, ok := byCommand[cmd]; ok {
			items = append(items, fmt.Sprintf("%s:%s", key, cmd))
		}
	}
	sort.Strings(items)
	return strings.Join(items, "  ")
}

func (c *FlyCommand) Execute(args []string) error {
	path := c.Config
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'skyleader init' first.")
		os.Exit(1)
	}
	if c.Vehicle != "" {
		cfg.Vehicle = c.Vehicle
	}

	var backend sink.Sink
	if c.Sim {
		backend = sim.New()
	} else {
		backend = tello.New(tello.Config{
			Port:       c.Port,
			MaxXY:      cfg.XY.Max,
			MaxZ:       cfg.Z.Max,
			MaxYawRate: cfg.Yaw.Max,
		})
	}
	defer backend.Close()

	held := input.NewHeldKeys(input.DefaultHoldWindow)

	session := pilot.NewSession(pilot.Config{
		Vehicle:  cfg.Vehicle,
		Tick:     time.Duration(cfg.TickMS) * time.Millisecond,
		XY:       pilot.AxisTuning(cfg.XY),
		Z:        pilot.AxisTuning(cfg.Z),
		Yaw:      pilot.AxisTuning(cfg.Yaw),
		AlphaXY:  cfg.Smoothing.AlphaXY,
		AlphaYaw: cfg.Smoothing.AlphaYaw,
	}, backend, held)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	p := tea.NewProgram(initialFlyModel(session, cfg, held, cancel, done), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	if m, ok := finalModel.(flyModel); ok && m.runErr != nil && m.runErr != context.Canceled {
		return m.runErr
	}
	return nil
}
