package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"consolida/internal/core"
	"consolida/internal/format"
	"consolida/internal/ledger"
	"consolida/internal/services"
)

const maxDescription = 40

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5F5FAF", Dark: "#87AFFF"})
	resultStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	groupStyle    = lipgloss.NewStyle().Bold(true)
	subtotalStyle = lipgloss.NewStyle().Italic(true)
	leafStyle     = lipgloss.NewStyle()
	negStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F87"})
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"})
)

func levelStyle(l core.Level) lipgloss.Style {
	switch l {
	case core.LevelResult:
		return resultStyle
	case core.LevelGroup:
		return groupStyle
	case core.LevelSubtotal:
		return subtotalStyle
	default:
		return leafStyle
	}
}

// table lays out cells by display width so accented descriptions align.
type table struct {
	header []string
	rows   [][]string
	levels []core.Level
	// numeric columns are right-aligned; money cells may be styled negative.
	numericFrom int
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for i, h := range t.header {
		w[i] = runewidth.StringWidth(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if cw := runewidth.StringWidth(c); cw > w[i] {
				w[i] = cw
			}
		}
	}
	return w
}

func (t *table) pad(i int, s string, width int) string {
	if i >= t.numericFrom {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

func (t *table) write(w io.Writer) error {
	widths := t.widths()
	cells := make([]string, len(t.header))
	for i, h := range t.header {
		cells[i] = headerStyle.Render(t.pad(i, h, widths[i]))
	}
	if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
		return err
	}
	for ri, r := range t.rows {
		style := leafStyle
		if ri < len(t.levels) {
			style = levelStyle(t.levels[ri])
		}
		for i, c := range r {
			padded := t.pad(i, c, widths[i])
			if i >= t.numericFrom && strings.HasPrefix(c, "(") {
				cells[i] = negStyle.Inherit(style).Render(padded)
			} else {
				cells[i] = style.Render(padded)
			}
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
			return err
		}
	}
	return nil
}

func describe(a core.Account) string {
	indent := strings.Repeat("  ", int(a.Level)-1)
	return runewidth.Truncate(indent+a.Description, maxDescription, "…")
}

func periodLabel(p core.Period, n core.Naming) string {
	name := []rune(core.MonthName(p.Month, n))
	if len(name) > 3 {
		name = name[:3]
	}
	return string(name) + "/" + strconv.Itoa(p.Year%100)
}

// RenderReport writes the report matrix as an aligned table.
func RenderReport(w io.Writer, rep *services.Report, n core.Naming) error {
	m := rep.Matrix
	t := &table{numericFrom: 2}
	t.header = append(t.header, "Code", "Description")
	for _, p := range m.Periods {
		t.header = append(t.header, periodLabel(p, n))
	}
	t.header = append(t.header, rep.Mode.Label())

	for _, r := range m.Rows {
		row := []string{r.Account.Code, describe(r.Account)}
		for _, v := range r.Values {
			row = append(row, format.Money(v))
		}
		row = append(row, format.Money(r.Summary(rep.Mode)))
		t.rows = append(t.rows, row)
		t.levels = append(t.levels, r.Account.Level)
	}
	if err := t.write(w); err != nil {
		return err
	}
	return renderNotes(w, m, rep.Missing, n)
}

// RenderComparison writes the year-over-year table.
func RenderComparison(w io.Writer, c *ledger.Comparison) error {
	t := &table{numericFrom: 2}
	t.header = []string{"Code", "Description", strconv.Itoa(c.YearA), strconv.Itoa(c.YearB), "Δ", "Δ%"}
	for _, r := range c.Rows {
		t.rows = append(t.rows, []string{
			r.Account.Code,
			describe(r.Account),
			format.Money(r.A),
			format.Money(r.B),
			format.Money(r.Delta),
			format.Percent(r.Percent),
		})
		t.levels = append(t.levels, r.Account.Level)
	}
	return t.write(w)
}

// RenderPeriods lists stored months per year.
func RenderPeriods(w io.Writer, periods []core.Period, n core.Naming) error {
	if len(periods) == 0 {
		_, err := fmt.Fprintln(w, infoStyle.Render("No periods stored."))
		return err
	}
	byYear := make(map[int][]string)
	var years []int
	for _, p := range periods {
		if _, ok := byYear[p.Year]; !ok {
			years = append(years, p.Year)
		}
		byYear[p.Year] = append(byYear[p.Year], core.MonthName(p.Month, n))
	}
	for _, y := range years {
		if _, err := fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(strconv.Itoa(y)), strings.Join(byYear[y], ", ")); err != nil {
			return err
		}
	}
	return nil
}

// RenderAccounts writes the chart of accounts indented by level.
func RenderAccounts(w io.Writer, tree *ledger.Tree) error {
	t := &table{numericFrom: 3}
	t.header = []string{"Code", "Description", "Level"}
	for _, a := range tree.Accounts() {
		t.rows = append(t.rows, []string{a.Code, describe(a), strconv.Itoa(int(a.Level))})
		t.levels = append(t.levels, a.Level)
	}
	return t.write(w)
}

func renderNotes(w io.Writer, m *ledger.Matrix, missing []core.Period, n core.Naming) error {
	var notes []string
	for _, p := range missing {
		notes = append(notes, infoStyle.Render("No data for "+p.Key(n)))
	}
	for _, code := range m.UnmatchedCodes() {
		notes = append(notes, warnStyle.Render(fmt.Sprintf("Unknown account %s: %s not counted", code, format.Money(m.Unmatched[code]))))
	}
	for _, code := range m.Tree.Orphans {
		notes = append(notes, warnStyle.Render("Account without parent: "+code))
	}
	for _, note := range notes {
		if _, err := fmt.Fprintln(w, note); err != nil {
			return err
		}
	}
	return nil
}

// netLine summarizes an upload for the terminal.
func netLine(rows int, net decimal.Decimal) string {
	return fmt.Sprintf("%d row(s), net %s", rows, format.Money(net))
}
