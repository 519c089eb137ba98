// Package alloc packs sections into a bounded context window. The
// assignment is a deterministic function of the inputs: critical sections
// are funded first at max(min, base); non-critical sections follow in
// priority order, shrinking or dropping as the remainder runs out. Identical
// inputs yield bit-identical assignments.
package alloc

import (
	"math"
	"sort"

	"facet/internal/diag"
)

// DefaultBudget is the global token budget when the host configures none.
const DefaultBudget = 8192

// Assignment is one section's funded token count.
type Assignment struct {
	Section *Section
	Tokens  int
	Dropped bool
}

// Plan is the full allocation outcome.
type Plan struct {
	Assignments []Assignment
	Total       int
	Budget      int
	Overflow    int
}

// Tokens returns the funded count for a section ID, with ok=false for
// unknown IDs.
func (p *Plan) Tokens(id string) (int, bool) {
	for _, a := range p.Assignments {
		if a.Section.ID == id {
			return a.Tokens, true
		}
	}
	return 0, false
}

// Allocate assigns token counts under the budget. All arithmetic is integer;
// the shrink factor is applied in thousandths so no float division reaches
// the assignment.
func Allocate(sections []*Section, budget int) (*Plan, *diag.Diagnostic) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var critical, flexible []*Section
	for _, s := range sections {
		if s.Critical {
			critical = append(critical, s)
		} else {
			flexible = append(flexible, s)
		}
	}

	required := 0
	for _, s := range critical {
		required += maxInt(s.Min, s.Base)
	}
	if required > budget {
		return nil, diag.New(diag.Budget,
			"critical sections require %d tokens but the budget is %d", required, budget)
	}

	tokens := make(map[string]int, len(sections))
	dropped := make(map[string]bool)

	remaining := budget
	for _, s := range critical {
		t := maxInt(s.Min, s.Base)
		tokens[s.ID] = t
		remaining -= t
	}

	ordered := make([]*Section, len(flexible))
	copy(ordered, flexible)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Order < ordered[j].Order
	})

	for _, s := range ordered {
		desired := s.Base
		switch {
		case desired <= remaining:
			tokens[s.ID] = desired
			remaining -= desired
		case remaining >= s.Min:
			t := maxInt(s.Min, shrunk(remaining, s.Shrink)+s.Min)
			if t > remaining {
				t = remaining
			}
			tokens[s.ID] = t
			remaining -= t
		default:
			tokens[s.ID] = 0
			dropped[s.ID] = true
		}
	}

	plan := &Plan{Budget: budget}
	for _, s := range sections {
		t := tokens[s.ID]
		plan.Assignments = append(plan.Assignments, Assignment{
			Section: s,
			Tokens:  t,
			Dropped: dropped[s.ID],
		})
		plan.Total += t
		plan.Overflow += s.Base - t
	}
	// A critical section with min above base contributes a negative term;
	// the aggregate is still reported as a non-negative shortfall.
	if plan.Overflow < 0 {
		plan.Overflow = 0
	}
	return plan, nil
}

// shrunk computes floor(remaining * shrink) with the factor held in
// thousandths.
func shrunk(remaining int, shrink float64) int {
	milli := int64(math.Round(shrink * 1000))
	return int(int64(remaining) * milli / 1000)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
