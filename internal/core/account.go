package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Hierarchy levels of the chart of accounts. Level 1 is the single net
// result row, level 4 receives postings.
const (
	LevelResult   Level = 1
	LevelGroup    Level = 2
	LevelSubtotal Level = 3
	LevelLeaf     Level = 4
)

type (
	Level int

	// Account is one node of the chart of accounts.
	Account struct {
		Code        string
		Description string
		Level       Level
	}

	// AccountRow is a chart row as read from the reference store, before
	// normalization. Columns are positional: code, description, level.
	AccountRow struct {
		Code        string
		Description string
		Level       string
	}
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	return l >= LevelResult && l <= LevelLeaf
}

func (l Level) String() string {
	switch l {
	case LevelResult:
		return "result"
	case LevelGroup:
		return "group"
	case LevelSubtotal:
		return "subtotal"
	case LevelLeaf:
		return "leaf"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel accepts integer cells as spreadsheets return them ("4", "4.0", " 4 ").
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidLevel
	}
	if i := strings.IndexAny(s, ".,"); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	l := Level(n)
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, n)
	}
	return l, nil
}

// ToAccount parses the level and canonicalizes the code for that level.
func (r AccountRow) ToAccount() (Account, error) {
	lvl, err := ParseLevel(r.Level)
	if err != nil {
		return Account{}, err
	}
	a := Account{
		Code:        NormalizeCode(r.Code, lvl),
		Description: collapseSpaces(r.Description),
		Level:       lvl,
	}
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Row converts the account back to its store representation.
func (a Account) Row() AccountRow {
	return AccountRow{Code: a.Code, Description: a.Description, Level: strconv.Itoa(int(a.Level))}
}

func (a Account) Validate() error {
	if !a.Level.Valid() {
		return ErrInvalidLevel
	}
	if strings.TrimSpace(a.Code) == "" {
		return ErrEmptyCode
	}
	return nil
}

// ParentCode returns the code with its last dot-segment removed, or "" for
// single-segment codes.
func (a Account) ParentCode() string {
	return ParentCode(a.Code)
}

// ParentCode strips the last dot-segment of code.
func ParentCode(code string) string {
	i := strings.LastIndexByte(code, '.')
	if i < 0 {
		return ""
	}
	return code[:i]
}

// HasAncestor reports whether ancestor is a dot-delimited prefix of code.
// "02" is an ancestor of "02.01.001" but not of "020.01".
func HasAncestor(code, ancestor string) bool {
	if ancestor == "" || len(code) <= len(ancestor) {
		return false
	}
	return strings.HasPrefix(code, ancestor) && code[len(ancestor)] == '.'
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
