// Package ledger turns a chart of accounts and per-period postings into the
// consolidated account by period matrix.
package ledger

import (
	"sort"

	"consolida/internal/core"
)

type (
	// Tree is the chart of accounts indexed for aggregation. It is built once
	// per report and never mutated afterwards.
	Tree struct {
		accounts []core.Account
		index    map[string]int
		// descendant level-4 rows per level-2/3 code, by position in accounts
		leaves  map[string][]int
		byLevel map[core.Level][]int
		diag    TreeDiagnostics
	}

	// TreeDiagnostics lists chart rows that are inconsistent with the
	// hierarchy. None of them abort aggregation.
	TreeDiagnostics struct {
		// Duplicates are codes that appeared more than once; the first row wins.
		Duplicates []string
		// Orphans are level-4 codes without a level-3 parent.
		Orphans []string
		// Skipped are rows dropped because their level could not be parsed.
		Skipped []core.AccountRow
	}
)

// NewTree normalizes rows and builds the hierarchy index. Rows keep chart
// order.
func NewTree(rows []core.AccountRow) *Tree {
	t := &Tree{
		index:   make(map[string]int, len(rows)),
		leaves:  make(map[string][]int),
		byLevel: make(map[core.Level][]int),
	}
	for _, r := range rows {
		a, err := r.ToAccount()
		if err != nil {
			t.diag.Skipped = append(t.diag.Skipped, r)
			continue
		}
		t.add(a)
	}
	t.link()
	return t
}

// NewTreeFromAccounts builds a tree from already canonical accounts.
func NewTreeFromAccounts(accounts []core.Account) *Tree {
	t := &Tree{
		index:   make(map[string]int, len(accounts)),
		leaves:  make(map[string][]int),
		byLevel: make(map[core.Level][]int),
	}
	for _, a := range accounts {
		t.add(a)
	}
	t.link()
	return t
}

func (t *Tree) add(a core.Account) {
	if _, dup := t.index[a.Code]; dup {
		t.diag.Duplicates = append(t.diag.Duplicates, a.Code)
		return
	}
	t.index[a.Code] = len(t.accounts)
	t.byLevel[a.Level] = append(t.byLevel[a.Level], len(t.accounts))
	t.accounts = append(t.accounts, a)
}

// link walks each leaf's dot-ancestors once, so aggregation never rescans.
func (t *Tree) link() {
	for _, i := range t.byLevel[core.LevelLeaf] {
		code := t.accounts[i].Code
		if p := core.ParentCode(code); !t.isLevel(p, core.LevelSubtotal) {
			t.diag.Orphans = append(t.diag.Orphans, code)
		}
		for anc := core.ParentCode(code); anc != ""; anc = core.ParentCode(anc) {
			if j, ok := t.index[anc]; ok {
				if lvl := t.accounts[j].Level; lvl == core.LevelGroup || lvl == core.LevelSubtotal {
					t.leaves[anc] = append(t.leaves[anc], i)
				}
			}
		}
	}
	sort.Strings(t.diag.Orphans)
}

func (t *Tree) isLevel(code string, lvl core.Level) bool {
	i, ok := t.index[code]
	return ok && t.accounts[i].Level == lvl
}

// Accounts returns the accounts in chart order.
func (t *Tree) Accounts() []core.Account {
	out := make([]core.Account, len(t.accounts))
	copy(out, t.accounts)
	return out
}

// Len returns the number of distinct accounts.
func (t *Tree) Len() int { return len(t.accounts) }

// Lookup finds an account by canonical code.
func (t *Tree) Lookup(code string) (core.Account, bool) {
	i, ok := t.index[code]
	if !ok {
		return core.Account{}, false
	}
	return t.accounts[i], true
}

// IsLeaf reports whether code is a level-4 account.
func (t *Tree) IsLeaf(code string) bool {
	return t.isLevel(code, core.LevelLeaf)
}

// LeafCodes returns all level-4 codes in chart order.
func (t *Tree) LeafCodes() []string {
	idx := t.byLevel[core.LevelLeaf]
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = t.accounts[i].Code
	}
	return out
}

// Descendants returns the level-4 codes under a level-2 or level-3 code.
func (t *Tree) Descendants(code string) []string {
	idx := t.leaves[code]
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = t.accounts[i].Code
	}
	return out
}

// Diagnostics reports duplicate, orphaned and skipped chart rows.
func (t *Tree) Diagnostics() TreeDiagnostics {
	return t.diag
}

// MissingLeaves returns the sorted, de-duplicated codes that are not level-4
// accounts of the tree.
func (t *Tree) MissingLeaves(codes []string) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, c := range codes {
		if t.IsLeaf(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		missing = append(missing, c)
	}
	sort.Strings(missing)
	return missing
}
