// Package cli implements iamctl, the operator CLI that works directly
// against a local SQLite IAM store.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// globals holds the resolved persistent flags.
type globals struct {
	db       string
	tenant   string
	output   string
	profile  string
	logLevel string
	noColor  bool

	// resolved profile
	jwtSecret string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "iamctl",
		Short:         "Tenant RBAC administration CLI",
		Long:          "Command-line interface for seeding and inspecting a tenant RBAC store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Config file is optional.
			p := loadOrNewUserConfig().ActiveProfile(g.profile)

			// Precedence: flag > env > profile > default
			resolve(cmd, "db", &g.db, "IAM_DB", p.DB)
			resolve(cmd, "tenant", &g.tenant, "IAM_TENANT", p.Tenant)
			resolve(cmd, "output", &g.output, "IAM_OUTPUT", p.Output)
			g.jwtSecret = firstNonEmpty(os.Getenv("JWT_SECRET"), p.JWTSecret)

			return validateOutputFormat(g.output)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.db, "db", "iam.sqlite", "Path to the SQLite IAM store")
	pf.StringVarP(&g.tenant, "tenant", "t", "", "Tenant name")
	pf.StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&g.profile, "profile", "p", "", "Config profile to use")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSeedCmd(g))
	rootCmd.AddCommand(newCheckCmd(g))
	rootCmd.AddCommand(newRolesCmd(g))
	rootCmd.AddCommand(newMembersCmd(g))
	rootCmd.AddCommand(newTokenCmd(g))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// resolve fills *dst from env or profile unless the flag was set.
func resolve(cmd *cobra.Command, flag string, dst *string, env, profile string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
	} else if profile != "" {
		*dst = profile
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "iamctl version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
