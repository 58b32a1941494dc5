package http

import (
	"bytes"
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"consolida/internal/core"
	"consolida/internal/format"
	"consolida/internal/log"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// templateFuncs are shared by every page. Period labels follow the
// configured month naming.
func templateFuncs(naming core.Naming) template.FuncMap {
	return template.FuncMap{
		"money":      format.Money,
		"percent":    format.Percent,
		"signClass":  format.SignClass,
		"levelClass": format.LevelClass,
		"periodLabel": func(p core.Period) string {
			return periodLabel(p, naming)
		},
		"monthName": func(m time.Month) string {
			return core.MonthName(m, naming)
		},
		"join":     strings.Join,
		"barWidth": barWidth,
	}
}

// barWidth scales |v| against max to a 0-100 percentage, keeping any
// non-zero value visible.
func barWidth(v decimal.Decimal, max float64) int {
	if max <= 0 || v.IsZero() {
		return 0
	}
	w := int(math.Round(v.Abs().InexactFloat64() * 100 / max))
	if w < 2 {
		w = 2
	}
	if w > 100 {
		w = 100
	}
	return w
}

// periodLabel renders "Jan/26" style column headers.
func periodLabel(p core.Period, n core.Naming) string {
	name := []rune(core.MonthName(p.Month, n))
	if len(name) > 3 {
		name = name[:3]
	}
	return string(name) + "/" + time.Date(p.Year, 1, 1, 0, 0, 0, 0, time.UTC).Format("06")
}

// monthOption is one entry of the month pickers.
type monthOption struct {
	Month    time.Month
	Number   int
	Name     string
	Selected bool
}

func monthOptions(selected []time.Month, naming core.Naming) []monthOption {
	chosen := make(map[time.Month]bool, len(selected))
	for _, m := range selected {
		chosen[m] = true
	}
	out := make([]monthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, monthOption{Month: m, Number: int(m), Name: core.MonthName(m, naming), Selected: chosen[m]})
	}
	return out
}

// yearOption is one entry of the year pickers.
type yearOption struct {
	Year     int
	Selected bool
}

func yearOptions(available, selected []int) []yearOption {
	chosen := make(map[int]bool, len(selected))
	for _, y := range selected {
		chosen[y] = true
	}
	out := make([]yearOption, 0, len(available))
	for _, y := range available {
		out = append(out, yearOption{Year: y, Selected: chosen[y]})
	}
	return out
}

// levelOption is one entry of the level filter.
type levelOption struct {
	Level    core.Level
	Number   int
	Name     string
	Selected bool
}

func levelOptions(selected []core.Level) []levelOption {
	chosen := make(map[core.Level]bool, len(selected))
	for _, l := range selected {
		chosen[l] = true
	}
	out := make([]levelOption, 0, 4)
	for l := core.LevelResult; l <= core.LevelLeaf; l++ {
		out = append(out, levelOption{Level: l, Number: int(l), Name: l.String(), Selected: chosen[l]})
	}
	return out
}

// render executes name into a buffer first so a template error never leaves
// a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderFragment executes a template for an HTMX response body.
func (s *Server) renderFragment(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if s.templates == nil {
		return nil, errTemplatesMissing
	}
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type apiError struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
