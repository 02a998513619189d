package declarative

import "sort"

// Action represents a single change made (or, in a dry run, to be made)
// by Reconcile.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string         // e.g. "alice" or "Engineering/alice"
	Desired      map[string]any // set for creates
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is the ordered list of actions produced by Reconcile.
type Plan struct {
	Tenant  string
	DryRun  bool
	Actions []Action
}

// Summary returns counts of creates and updates.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		}
	}
	return s
}

// HasChanges returns true if the plan has any actions.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
}

func (p *Plan) add(a Action) {
	p.Actions = append(p.Actions, a)
}

// SortActions orders actions by dependency layer and then by name, keeping
// the relative order of actions on the same resource.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		li, lj := p.Actions[i].ResourceKind.Layer(), p.Actions[j].ResourceKind.Layer()
		if li != lj {
			return li < lj
		}
		return p.Actions[i].ResourceName < p.Actions[j].ResourceName
	})
}
