package parser

import "strings"

// Repairer attempts to turn an overlong row into one with at most expected
// fields. ok=false means the row is unrepairable.
type Repairer interface {
	Repair(fields []string, expected int) (repaired []string, ok bool)
}

// SpaceGuardRepairer rejoins the fields and re-splits only at delimiters that
// are not immediately preceded by a space. A pipe written as "abc |def" is
// treated as prose; "abc|def" is a column break.
//
// The rule is a pattern match against known defects in the export, not a
// grammar. Rows it cannot bring down to the expected width are quarantined.
type SpaceGuardRepairer struct {
	Delimiter byte
}

// Repair implements Repairer.
func (r SpaceGuardRepairer) Repair(fields []string, expected int) ([]string, bool) {
	delim := r.Delimiter
	if delim == 0 {
		delim = '|'
	}
	line := strings.Join(fields, string(delim))

	out := make([]string, 0, expected)
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] != delim {
			continue
		}
		if i > 0 && line[i-1] == ' ' {
			continue
		}
		out = append(out, line[start:i])
		start = i + 1
	}
	out = append(out, line[start:])

	if len(out) > expected {
		return nil, false
	}
	return out, true
}

// RepairFunc adapts a function to Repairer.
type RepairFunc func(fields []string, expected int) ([]string, bool)

// Repair implements Repairer.
func (f RepairFunc) Repair(fields []string, expected int) ([]string, bool) {
	return f(fields, expected)
}
