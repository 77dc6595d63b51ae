package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/tui/themes"
)

type view int

const (
	viewDocuments view = iota
	viewCandidates
)

// filterCycle is the order the filter key steps through; "" shows everything.
var filterCycle = []model.Outcome{"", model.OutcomeTP, model.OutcomeFP, model.OutcomeTN, model.OutcomeFN}

// Review browses the per-document results of one run.
type Review struct {
	run        *model.Run
	theme      themes.Theme
	keys       KeyMap
	help       help.Model
	filter     model.Outcome
	visible    []int
	documents  table.Model
	candidates table.Model
	view       view
	width      int
	height     int
}

// NewReview creates a review browser over run.
func NewReview(run *model.Run, theme themes.Theme) Review {
	if run == nil {
		run = &model.Run{}
	}

	m := Review{
		run:   run,
		theme: theme,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		documents: newTable(theme, []table.Column{
			{Title: "Document", Width: 24},
			{Title: "Outcome", Width: 8},
			{Title: "Top score", Width: 10},
			{Title: "Top source", Width: 24},
			{Title: "Candidates", Width: 10},
			{Title: "Error", Width: 30},
		}, true),
		candidates: newTable(theme, []table.Column{
			{Title: "#", Width: 3},
			{Title: "Score", Width: 7},
			{Title: "Date", Width: 10},
			{Title: "Amount", Width: 12},
			{Title: "Currency", Width: 8},
			{Title: "Vendor", Width: 28},
			{Title: "Source", Width: 24},
		}, false),
		width:  100,
		height: 24,
	}
	m.applyFilter()
	return m
}

func newTable(theme themes.Theme, columns []table.Column, focused bool) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(focused),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border).
		BorderBottom(true).
		Bold(false)
	s.Selected = theme.Selected
	t.SetStyles(s)
	return t
}

// Init implements tea.Model.
func (m Review) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Review) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h := max(3, msg.Height-8)
		m.documents.SetHeight(h)
		m.candidates.SetHeight(h)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case m.view == viewDocuments && key.Matches(msg, m.keys.Filter):
			m.cycleFilter()
			return m, nil
		case m.view == viewDocuments && key.Matches(msg, m.keys.Open):
			if doc, ok := m.Selected(); ok {
				m.candidates.SetRows(candidateRows(doc.Matches))
				m.candidates.SetCursor(0)
				m.candidates.Focus()
				m.documents.Blur()
				m.view = viewCandidates
			}
			return m, nil
		case m.view == viewCandidates && key.Matches(msg, m.keys.Back):
			m.candidates.Blur()
			m.documents.Focus()
			m.view = viewDocuments
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.view == viewCandidates {
		m.candidates, cmd = m.candidates.Update(msg)
	} else {
		m.documents, cmd = m.documents.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Review) View() string {
	var body string
	if m.view == viewCandidates {
		body = m.candidatesView()
	} else {
		body = m.documentsView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.help.View(m.keys))
}

func (m Review) documentsView() string {
	totals := m.run.Totals
	title := m.theme.Title.Render(fmt.Sprintf("Run %s · %s", m.run.ID, m.run.LedgerPath))

	counts := fmt.Sprintf("TP %d  FP %d  TN %d  FN %d  ·  accuracy %.1f%%  F1 %.1f%%",
		totals.TP, totals.FP, totals.TN, totals.FN, totals.Accuracy, totals.F1)
	status := fmt.Sprintf("%d of %d documents", len(m.visible), len(m.run.Documents))
	if m.filter != "" {
		status += " · showing " + string(m.filter)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.theme.Subtitle.Render(counts),
		m.theme.Subtitle.Render(status),
		m.documents.View(),
	)
}

func (m Review) candidatesView() string {
	doc, _ := m.Selected()

	outcome := m.theme.Outcome(doc.Outcome()).Render(string(doc.Outcome()))
	title := m.theme.Title.Render("Candidates for " + doc.Document)

	lines := []string{
		title,
		fmt.Sprintf("%s  expected %s", outcome, doc.ExpectedSource),
	}
	if doc.Record != nil {
		r := doc.Record
		lines = append(lines, m.theme.Subtitle.Render(
			fmt.Sprintf("Extracted: date %s · amount %s · currency %s · vendor %s", r.Date, r.Amount, r.Currency, r.Vendor)))
	}
	if doc.Error != "" {
		lines = append(lines, m.theme.StatusError.Render(doc.Error))
	}

	if doc.Matches.Empty() {
		lines = append(lines, m.theme.StatusPending.Render(
			fmt.Sprintf("No ledger row reached the threshold of %d", m.run.Threshold)))
	} else {
		lines = append(lines, m.candidates.View())
	}
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}

// Selected returns the document under the cursor.
func (m Review) Selected() (model.DocumentResult, bool) {
	cursor := m.documents.Cursor()
	if cursor < 0 || cursor >= len(m.visible) {
		return model.DocumentResult{}, false
	}
	return m.run.Documents[m.visible[cursor]], true
}

// Filter is the outcome currently shown, "" for all.
func (m Review) Filter() model.Outcome {
	return m.filter
}

// Visible is the number of documents passing the filter.
func (m Review) Visible() int {
	return len(m.visible)
}

// ShowingCandidates reports whether the candidate view is open.
func (m Review) ShowingCandidates() bool {
	return m.view == viewCandidates
}

func (m *Review) cycleFilter() {
	for i, o := range filterCycle {
		if o == m.filter {
			m.filter = filterCycle[(i+1)%len(filterCycle)]
			break
		}
	}
	m.applyFilter()
}

func (m *Review) applyFilter() {
	m.visible = make([]int, 0, len(m.run.Documents))
	rows := make([]table.Row, 0, len(m.run.Documents))
	for i, doc := range m.run.Documents {
		if m.filter != "" && doc.Outcome() != m.filter {
			continue
		}
		m.visible = append(m.visible, i)
		rows = append(rows, documentRow(doc))
	}
	m.documents.SetRows(rows)
	m.documents.SetCursor(0)
}

func documentRow(doc model.DocumentResult) table.Row {
	score, source := "-", "-"
	if top, ok := doc.Matches.Top(); ok {
		score = model.FormatScore(top.Score)
		source = top.Row.Source
		if source == "" {
			source = "row " + strconv.Itoa(top.Row.Index)
		}
	}
	return table.Row{
		doc.Document,
		string(doc.Outcome()),
		score,
		source,
		strconv.Itoa(len(doc.Matches)),
		doc.Error,
	}
}

func candidateRows(result model.MatchResult) []table.Row {
	rows := make([]table.Row, 0, len(result))
	for i, c := range result {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			model.FormatScore(c.Score),
			c.Row.DateString(),
			c.Row.AmountString(),
			c.Row.Currency,
			c.Row.Vendor,
			c.Row.Source,
		})
	}
	return rows
}
