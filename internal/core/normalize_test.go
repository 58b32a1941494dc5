package core

import "testing"

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		level Level
		want  string
	}{
		{"date slash year 2001", "01/02/2001", LevelLeaf, "02.01.001"},
		{"date dash", "1-2-2005", LevelLeaf, "02.01.005"},
		{"date datetime suffix", "01/02/2001 00:00:00", LevelLeaf, "02.01.001"},
		{"date short year", "3/4/7", LevelLeaf, "04.03.007"},
		{"date two segments falls through", "01/02", LevelLeaf, "01/02"},
		{"level 2 single digit", "1", LevelGroup, "01"},
		{"level 2 already padded", "02", LevelGroup, "02"},
		{"level 3 missing both zeros", "2.1", LevelSubtotal, "02.10"},
		{"level 3 missing leading zero", "2.15", LevelSubtotal, "02.15"},
		{"level 3 canonical", "02.10", LevelSubtotal, "02.10"},
		{"level 3 decimal comma", "2,1", LevelSubtotal, "02.10"},
		{"level 3 single digit", "3", LevelSubtotal, "03"},
		{"level 4 untouched", "1.1.001", LevelLeaf, "1.1.001"},
		{"level 1 untouched", "0", LevelResult, "0"},
		{"trims", "  01.01.001 ", LevelLeaf, "01.01.001"},
		{"garbage passes through", "abc", LevelLeaf, "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCode(tc.raw, tc.level); got != tc.want {
				t.Fatalf("NormalizeCode(%q, %d) = %q, want %q", tc.raw, tc.level, got, tc.want)
			}
		})
	}
}

func TestNormalizeCodeIdempotent(t *testing.T) {
	inputs := []string{"01/02/2001", "1-2-2005", "1", "2.1", "2,1", "2.15", "02.10", "abc", "01/02", "7"}
	for _, lvl := range []Level{LevelResult, LevelGroup, LevelSubtotal, LevelLeaf} {
		for _, in := range inputs {
			once := NormalizeCode(in, lvl)
			if twice := NormalizeCode(once, lvl); twice != once {
				t.Fatalf("level %d: %q -> %q -> %q", lvl, in, once, twice)
			}
		}
	}
}
