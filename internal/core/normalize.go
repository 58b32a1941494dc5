package core

import "strings"

// NormalizeCode canonicalizes a raw account code for the given level. Rules
// apply in order:
//
//  1. Codes containing '/' or '-' were mangled into dates by the spreadsheet.
//     "01/02/2001" becomes "02.01.001": the first two segments swap and pad to
//     width 2, and the year keeps its last three digits ("2001" maps to "001").
//     Fewer than three segments fall through unchanged.
//  2. Levels 2 and 3 lose their leading zero: "1" and "1.2" gain one.
//  3. Level-3 second segments are two digits; a single digit lost its
//     trailing zero, so "02.1" becomes "02.10".
//
// Anything else is returned trimmed. The function is idempotent.
func NormalizeCode(raw string, level Level) string {
	v := strings.TrimSpace(raw)
	if strings.ContainsAny(v, "/-") {
		parts := strings.Split(strings.NewReplacer("/", ".", "-", ".").Replace(v), ".")
		if len(parts) >= 3 {
			return padLeft(parts[1], 2) + "." + padLeft(parts[0], 2) + "." + yearCode(parts[2])
		}
	}

	if level != LevelGroup && level != LevelSubtotal {
		return v
	}
	// Decimal commas come from pt-BR locale exports.
	v = strings.ReplaceAll(v, ",", ".")

	if v != "" && !strings.HasPrefix(v, "0") {
		first, _, hasDot := strings.Cut(v, ".")
		if len(v) == 1 || (hasDot && len(first) == 1) {
			v = "0" + v
		}
	}

	if level == LevelSubtotal {
		if first, second, ok := strings.Cut(v, "."); ok {
			if len(second) == 1 {
				second += "0"
			}
			v = padLeft(first, 2) + "." + second
		}
	}
	return v
}

func yearCode(seg string) string {
	if strings.Contains(seg, "2001") {
		return "001"
	}
	if len(seg) > 3 {
		return seg[len(seg)-3:]
	}
	return padLeft(seg, 3)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
