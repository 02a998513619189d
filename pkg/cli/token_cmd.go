package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tenant-rbac/internal/app"
	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/middleware"
)

func newTokenCmd(g *globals) *cobra.Command {
	var (
		ttl    time.Duration
		issuer string
	)

	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Issue an HS256 bearer token for a user",
		Long: `Issues a token the server accepts when it runs with JWT_SECRET. The
secret is read from JWT_SECRET or the jwt-secret of the active profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.jwtSecret == "" {
				return fmt.Errorf("no signing secret: set JWT_SECRET or the profile jwt-secret")
			}
			return withTenant(cmd, g, func(a *app.App, tenant *domain.Tenant) error {
				u, err := a.Repos.Users.GetByUsername(cmd.Context(), tenant.ID, args[0])
				if err != nil {
					return err
				}
				if !u.IsEnabled() {
					return fmt.Errorf("user %q is disabled", u.Username)
				}
				tok, err := middleware.SignHS256(g.jwtSecret, tenant.ID, u.Username, issuer, ttl)
				if err != nil {
					return fmt.Errorf("sign token: %w", err)
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"token":      tok,
						"tenant_id":  int64(tenant.ID),
						"username":   u.Username,
						"expires_in": int64(ttl.Seconds()),
					})
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&issuer, "issuer", "", "iss claim (must match the server's JWT_ISSUER when set)")
	return cmd
}
