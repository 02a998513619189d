package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tenant-rbac/internal/declarative"
)

func newSeedCmd(g *globals) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Apply a TenantSeed document to the store",
		Long: `Creates the tenant, users, groups and roles declared in a TenantSeed
document. Existing resources are updated in place; nothing is deleted, so
the command can be re-run safely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			plan, err := a.Seed(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return declarative.FormatJSON(cmd.OutOrStdout(), plan)
			}
			declarative.FormatText(cmd.OutOrStdout(), plan, colorDisabled(cmd.OutOrStdout(), g.noColor))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without writing")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a TenantSeed document without touching the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := declarative.LoadFile(args[0])
			if err != nil {
				return err
			}
			errs := declarative.Validate(doc)

			if getOutputFormat(cmd) == "json" {
				issues := make([]map[string]string, 0, len(errs))
				for _, e := range errs {
					issues = append(issues, map[string]string{"path": e.Path, "message": e.Message})
				}
				if err := printJSON(cmd.OutOrStdout(), map[string]any{"valid": len(errs) == 0, "errors": issues}); err != nil {
					return err
				}
			} else {
				for _, e := range errs {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", e.Path, e.Message)
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("%s: %d validation error(s)", args[0], len(errs))
			}
			if getOutputFormat(cmd) != "json" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid.\n", args[0])
			}
			return nil
		},
	}
}
