package dashconsole

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orthotracker/internal/usecase/tracker"
)

const (
	defaultRefreshInterval = 5 * time.Second
	maxActionLines         = 6
	maxTypeRows            = 8
)

// Source is the slice of the tracker service the console reads from.
type Source interface {
	Dashboard(ctx context.Context) (tracker.DashboardKPIs, error)
	GetProcedure(ctx context.Context, procedureID uint64) (tracker.ProcedureDetail, error)
	RecomputeCommission(ctx context.Context, input tracker.RecomputeInput) (tracker.RecomputeResult, error)
}

type Options struct {
	RefreshInterval time.Duration
	// Actor is recorded in the audit log for recompute actions.
	Actor string
}

type model struct {
	ctx             context.Context
	source          Source
	refreshInterval time.Duration
	actor           string

	kpis          tracker.DashboardKPIs
	loaded        bool
	selectedIndex int
	detail        tracker.ProcedureDetail
	hasDetail     bool
	status        string
	actions       []string
}

type kpisLoadedMsg struct {
	kpis tracker.DashboardKPIs
	err  error
}

type detailLoadedMsg struct {
	procedureID uint64
	detail      tracker.ProcedureDetail
	err         error
}

type recomputedMsg struct {
	procedureID uint64
	result      tracker.RecomputeResult
	err         error
}

type tickMsg struct{}

func NewModel(ctx context.Context, source Source, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	actor := strings.TrimSpace(options.Actor)
	if actor == "" {
		actor = "console"
	}
	return &model{
		ctx:             ctx,
		source:          source,
		refreshInterval: interval,
		actor:           actor,
		status:          "loading",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.loadKPIsCmd(), m.tickCmd())
}

func (m *model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadKPIsCmd(), m.tickCmd())
	case kpisLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.kpis = msg.kpis
		m.loaded = true
		if len(m.kpis.Recent) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no procedures yet"
			return m, nil
		}
		if m.selectedIndex >= len(m.kpis.Recent) {
			m.selectedIndex = len(m.kpis.Recent) - 1
		}
		m.status = "refreshed " + firstNonEmpty(m.kpis.GeneratedAt, "now")
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selected()
		if !ok || selected.ProcedureID != msg.procedureID {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case recomputedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("recompute %d failed: %v", msg.procedureID, msg.err)
			m.appendAction(fmt.Sprintf("recompute #%d failed: %v", msg.procedureID, msg.err))
			return m, nil
		}
		line := fmt.Sprintf("recompute #%d unchanged", msg.procedureID)
		if len(msg.result.Changes) > 0 {
			change := msg.result.Changes[0]
			line = fmt.Sprintf("recompute #%d %s -> %s", msg.procedureID, formatAmount(change.Old), formatAmount(change.New))
		}
		m.status = line
		m.appendAction(line)
		return m, m.loadKPIsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadKPIsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.kpis.Recent)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "r":
			return m, m.recomputeCmd()
		}
	}
	return m, nil
}

func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Orthotracker Dashboard"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("refresh=%s actor=%s", m.refreshInterval, m.actor)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("KPIs"))
	builder.WriteString("\n")
	if !m.loaded {
		builder.WriteString(dimStyle.Render("- loading"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("Procedures: %s  Pending: %s\n",
			valueStyle.Render(strconv.FormatInt(m.kpis.TotalProcedures, 10)),
			valueStyle.Render(strconv.FormatInt(m.kpis.Pending, 10))))
		builder.WriteString(fmt.Sprintf("Revenue: %s KSh  Commission: %s KSh\n",
			valueStyle.Render(formatAmount(m.kpis.TotalRevenue)),
			valueStyle.Render(formatAmount(m.kpis.TotalCommission))))
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("By Type"))
	builder.WriteString("\n")
	if len(m.kpis.ByType) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	} else {
		for index, item := range m.kpis.ByType {
			if index >= maxTypeRows {
				builder.WriteString(dimStyle.Render(fmt.Sprintf("- %d more", len(m.kpis.ByType)-maxTypeRows)))
				builder.WriteString("\n")
				break
			}
			builder.WriteString(fmt.Sprintf("- %s: %d\n", item.ProcedureType, item.Count))
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Recent"))
	builder.WriteString("\n")
	if len(m.kpis.Recent) == 0 {
		builder.WriteString(dimStyle.Render("- no procedures"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.kpis.Recent {
			line := fmt.Sprintf("#%d %s %s @ %s rev=%s comm=%s",
				item.ProcedureID,
				item.Date,
				item.ProcedureType,
				item.Hospital,
				formatAmount(item.Revenue),
				formatAmount(item.Commission),
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		p := m.detail.Procedure
		builder.WriteString(fmt.Sprintf("Rep: %s\n", firstNonEmpty(p.RepName, "-")))
		builder.WriteString(fmt.Sprintf("Surgeon: %s\n", firstNonEmpty(p.Surgeon, "-")))
		builder.WriteString(fmt.Sprintf("Status: %s\n", firstNonEmpty(p.Status, "-")))
		builder.WriteString(fmt.Sprintf("Commission calculated: %s\n", firstNonEmpty(m.detail.CalculatedAt, "never")))
		builder.WriteString(fmt.Sprintf("Notes: %s\n", firstNonEmpty(firstLine(p.Notes), "-")))
		if len(m.detail.Attachments) == 0 {
			builder.WriteString("Attachments: none\n")
		} else {
			names := make([]string, 0, len(m.detail.Attachments))
			for _, attachment := range m.detail.Attachments {
				names = append(names, attachment.Filename)
			}
			builder.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(names, ", ")))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	if len(m.actions) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	} else {
		for _, line := range m.actions {
			builder.WriteString("- " + line + "\n")
		}
	}
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render("j/k move  r recompute selected  g refresh  q quit"))
	builder.WriteString("\n")
	return builder.String()
}

func (m *model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *model) loadKPIsCmd() tea.Cmd {
	return func() tea.Msg {
		kpis, err := m.source.Dashboard(m.ctx)
		return kpisLoadedMsg{kpis: kpis, err: err}
	}
}

func (m *model) loadDetailCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.source.GetProcedure(m.ctx, selected.ProcedureID)
		return detailLoadedMsg{procedureID: selected.ProcedureID, detail: detail, err: err}
	}
}

func (m *model) recomputeCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	m.status = fmt.Sprintf("recomputing #%d", selected.ProcedureID)
	return func() tea.Msg {
		result, err := m.source.RecomputeCommission(m.ctx, tracker.RecomputeInput{
			ProcedureID: selected.ProcedureID,
			Actor:       m.actor,
		})
		return recomputedMsg{procedureID: selected.ProcedureID, result: result, err: err}
	}
}

func (m *model) selected() (tracker.ProcedureView, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.kpis.Recent) {
		return tracker.ProcedureView{}, false
	}
	return m.kpis.Recent[m.selectedIndex], true
}

func (m *model) appendAction(line string) {
	stamp := time.Now().Format("15:04:05")
	m.actions = append(m.actions, stamp+" "+line)
	if len(m.actions) > maxActionLines {
		m.actions = m.actions[len(m.actions)-maxActionLines:]
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
