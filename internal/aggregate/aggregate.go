// Package aggregate reduces raw query, view and section events into merged,
// bounded summaries.
package aggregate

import (
	"cmp"
	"slices"
	"strings"

	"github.com/plexsphere/plexapm/internal/sample"
)

// DefaultTopN is the number of entries kept per summary.
const DefaultTopN = 25

// DefaultMeaninglessCommands are transaction-control statements that add to
// total runtime but not to call counts.
var DefaultMeaninglessCommands = []string{"BEGIN", "COMMIT"}

// Rules decides which query commands count as calls.
// A Rules value is immutable after construction and safe for concurrent use.
type Rules struct {
	meaningless map[string]struct{}
}

// NewRules builds Rules from the commands that must not count as calls.
// A nil slice selects DefaultMeaninglessCommands.
func NewRules(meaningless []string) *Rules {
	if meaningless == nil {
		meaningless = DefaultMeaninglessCommands
	}
	r := &Rules{meaningless: make(map[string]struct{}, len(meaningless))}
	for _, c := range meaningless {
		r.meaningless[strings.TrimSpace(c)] = struct{}{}
	}
	return r
}

// Meaningful reports whether command contributes to a query's call count.
func (r *Rules) Meaningful(command string) bool {
	_, excluded := r.meaningless[strings.TrimSpace(command)]
	return !excluded
}

// RecordQuery merges q into list by (kind, file, line) and returns the
// possibly grown list. Runtime always accumulates; Times, Command and Plan are
// only touched by meaningful commands, and Command/Plan keep their first value.
func (r *Rules) RecordQuery(list []*sample.QueryStat, q sample.Query) []*sample.QueryStat {
	stat := findQuery(list, q.Kind, q.File, q.Line)
	if stat == nil {
		stat = &sample.QueryStat{Kind: q.Kind, File: q.File, Line: q.Line}
		list = append(list, stat)
	}
	stat.Runtime += q.Runtime
	if r.Meaningful(q.Command) {
		stat.Times++
		if stat.Command == "" {
			stat.Command = q.Command
		}
		if stat.Plan == "" && q.Plan != "" {
			stat.Plan = q.Plan
		}
	}
	return list
}

// RecordView merges a render event into list. Views share the query identity
// with a fixed kind.
func RecordView(list []*sample.QueryStat, v sample.View) []*sample.QueryStat {
	stat := findQuery(list, "view", v.File, v.Line)
	if stat == nil {
		stat = &sample.QueryStat{Kind: "view", File: v.File, Line: v.Line}
		list = append(list, stat)
	}
	stat.Runtime += v.Runtime
	stat.Times++
	return list
}

// ViewsByFile merges view stats of the same template file, summing runtime
// and times. The first line seen is kept. list is not modified.
func ViewsByFile(list []*sample.QueryStat) []*sample.QueryStat {
	out := make([]*sample.QueryStat, 0, len(list))
	index := make(map[string]*sample.QueryStat, len(list))
	for _, s := range list {
		if merged, ok := index[s.File]; ok {
			merged.Runtime += s.Runtime
			merged.Times += s.Times
			continue
		}
		c := *s
		index[s.File] = &c
		out = append(out, &c)
	}
	return out
}

// MergeSection merges s into list by (command, kind) and returns the possibly
// grown list.
func MergeSection(list []*sample.Section, s *sample.Section) []*sample.Section {
	for _, existing := range list {
		if existing.Sibling(s) {
			existing.Calls += s.Calls
			existing.Runtime += s.Runtime
			existing.ChildrenRuntime += s.ChildrenRuntime
			return list
		}
	}
	return append(list, s)
}

// TopN returns copies of the n entries with the greatest runtime, in
// descending order. Ties are broken arbitrarily.
func TopN(list []*sample.QueryStat, n int) []sample.QueryStat {
	out := make([]sample.QueryStat, 0, len(list))
	for _, s := range list {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b sample.QueryStat) int {
		return cmp.Compare(b.Runtime, a.Runtime)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TotalRuntime sums the runtime of every entry.
func TotalRuntime(list []*sample.QueryStat) float64 {
	var total float64
	for _, s := range list {
		total += s.Runtime
	}
	return total
}

func findQuery(list []*sample.QueryStat, kind, file string, line int) *sample.QueryStat {
	for _, s := range list {
		if s.Line == line && s.File == file && s.Kind == kind {
			return s
		}
	}
	return nil
}
