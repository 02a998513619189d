package declarative

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// FormatText writes a human-readable plan to w.
// If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, plan *Plan, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if !plan.HasChanges() {
		fmt.Fprintf(w, "No changes. Tenant %q is up-to-date.\n", plan.Tenant)
		return
	}

	verb := func(done, pending string) string {
		if plan.DryRun {
			return pending
		}
		return done
	}

	fmt.Fprintf(w, "%s# tenant %s%s\n", c(colorCyan), plan.Tenant, c(colorReset))
	for _, a := range plan.Actions {
		switch a.Operation {
		case OpCreate:
			fmt.Fprintf(w, "  %s+%s %s %q %s\n",
				c(colorGreen), c(colorReset), a.ResourceKind, a.ResourceName, verb("created", "will be created"))
			formatDesired(w, a.Desired, c)
		case OpUpdate:
			fmt.Fprintf(w, "  %s~%s %s %q %s\n",
				c(colorYellow), c(colorReset), a.ResourceKind, a.ResourceName, verb("updated", "will be updated"))
			for _, d := range a.Changes {
				fmt.Fprintf(w, "      %s: %q → %q\n", d.Field, d.OldValue, d.NewValue)
			}
		}
	}

	s := plan.Summary()
	fmt.Fprintf(w, "\n%sSeed:%s %d %s, %d %s.\n",
		c(colorDim), c(colorReset),
		s.Creates, verb("created", "to create"),
		s.Updates, verb("updated", "to update"))
}

// formatDesired writes sorted key-value pairs for a created resource.
func formatDesired(w io.Writer, desired map[string]any, c func(string) string) {
	keys := make([]string, 0, len(desired))
	for k := range desired {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "      %s%s%s: %v\n", c(colorDim), k, c(colorReset), desired[k])
	}
}

// FormatJSON writes the plan as JSON to w.
func FormatJSON(w io.Writer, plan *Plan) error {
	type jsonAction struct {
		Operation    string      `json:"operation"`
		ResourceType string      `json:"resource_type"`
		ResourceName string      `json:"resource_name"`
		Changes      []FieldDiff `json:"changes,omitempty"`
	}
	type jsonPlan struct {
		Tenant  string       `json:"tenant"`
		DryRun  bool         `json:"dry_run"`
		Actions []jsonAction `json:"actions"`
		Summary PlanSummary  `json:"summary"`
	}

	jp := jsonPlan{
		Tenant:  plan.Tenant,
		DryRun:  plan.DryRun,
		Actions: make([]jsonAction, 0, len(plan.Actions)),
		Summary: plan.Summary(),
	}
	for _, a := range plan.Actions {
		jp.Actions = append(jp.Actions, jsonAction{
			Operation:    a.Operation.String(),
			ResourceType: a.ResourceKind.String(),
			ResourceName: a.ResourceName,
			Changes:      a.Changes,
		})
	}

	data, err := json.MarshalIndent(jp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
