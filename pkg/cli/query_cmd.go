package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tenant-rbac/internal/app"
	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/service/security"
)

// errDenied is returned by check --exit-code when the permission is not held.
var errDenied = errors.New("permission denied")

func newCheckCmd(g *globals) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "check <username> <permission>",
		Short: "Explain whether a user holds a permission",
		Example: `  iamctl check -t Acme alice "View Tenant"
  iamctl check -t Acme bob "Provision Role" --exit-code`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd, g, func(a *app.App, tenant *domain.Tenant) error {
				d, err := a.Services.Authorization.Check(cmd.Context(), tenant.ID, args[0], args[1])
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					if err := printJSON(cmd.OutOrStdout(), d); err != nil {
						return err
					}
				} else {
					if err := printTable(cmd.OutOrStdout(),
						[]string{"user", "permission", "allowed", "effect", "roles"},
						[][]string{{d.Username, d.Permission, strconv.FormatBool(d.Allowed), string(d.Effect), strings.Join(d.Roles, ",")}},
					); err != nil {
						return err
					}
				}
				if exitCode && !d.Allowed {
					return errDenied
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit non-zero when the permission is not held")
	return cmd
}

func newRolesCmd(g *globals) *cobra.Command {
	var showPerms bool

	cmd := &cobra.Command{
		Use:   "roles <username>",
		Short: "List the roles and effective permissions of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd, g, func(a *app.App, tenant *domain.Tenant) error {
				u, err := a.Repos.Users.GetByUsername(cmd.Context(), tenant.ID, args[0])
				if err != nil {
					return err
				}
				roles, err := a.Services.Authorization.RolesForUser(cmd.Context(), *u)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(roles))
				for _, r := range roles {
					names = append(names, r.Name)
				}
				sort.Strings(names)

				var perms []string
				if showPerms {
					for _, p := range security.EffectivePermissions(roles, *u) {
						perms = append(perms, formatPermission(p))
					}
				}

				if getOutputFormat(cmd) == "json" {
					out := map[string]any{"username": u.Username, "enabled": u.IsEnabled(), "roles": names}
					if showPerms {
						out["permissions"] = perms
					}
					return printJSON(cmd.OutOrStdout(), out)
				}
				rows := make([][]string, 0, len(names))
				for _, n := range names {
					rows = append(rows, []string{n})
				}
				if err := printTable(cmd.OutOrStdout(), []string{"role"}, rows); err != nil {
					return err
				}
				if showPerms {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nEffective permissions: %s\n", strings.Join(perms, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showPerms, "permissions", false, "Also print effective permissions")
	return cmd
}

func formatPermission(p domain.RevocablePermission) string {
	if p.IsRevocation {
		return "-" + p.Name()
	}
	return "+" + p.Name()
}

func newMembersCmd(g *globals) *cobra.Command {
	var (
		hasUser string
		shallow bool
	)

	cmd := &cobra.Command{
		Use:   "members <group>",
		Short: "List the direct members of a group, or test membership of a user",
		Example: `  iamctl members -t Acme Acme-All
  iamctl members -t Acme Acme-All --has alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd, g, func(a *app.App, tenant *domain.Tenant) error {
				ctx := cmd.Context()
				group, err := a.Repos.Groups.GetByName(ctx, tenant.ID, args[0])
				if err != nil {
					return err
				}

				if hasUser != "" {
					u, err := a.Repos.Users.GetByUsername(ctx, tenant.ID, hasUser)
					if err != nil {
						return err
					}
					member, err := a.Services.Group.HasMember(ctx, *group, *u, !shallow)
					if err != nil {
						return err
					}
					if getOutputFormat(cmd) == "json" {
						return printJSON(cmd.OutOrStdout(), map[string]any{
							"group": group.Name, "username": u.Username, "deep": !shallow, "member": member,
						})
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s in %s: %t\n", u.Username, group.Name, member)
					return nil
				}

				type row struct {
					Name string `json:"name"`
					Type string `json:"type"`
				}
				rows := make([]row, 0, group.Len())
				for _, m := range group.Members() {
					if id, ok := m.UserID(); ok {
						u, err := a.Repos.Users.GetByID(ctx, tenant.ID, id)
						if err != nil {
							return err
						}
						rows = append(rows, row{Name: u.Username, Type: "user"})
					} else if id, ok := m.GroupID(); ok {
						child, err := a.Repos.Groups.GetByID(ctx, tenant.ID, id)
						if err != nil {
							return err
						}
						rows = append(rows, row{Name: child.Name, Type: "group"})
					}
				}
				sort.Slice(rows, func(i, j int) bool {
					if rows[i].Type != rows[j].Type {
						return rows[i].Type < rows[j].Type
					}
					return rows[i].Name < rows[j].Name
				})

				if getOutputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]any{"group": group.Name, "members": rows})
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{r.Name, r.Type})
				}
				return printTable(cmd.OutOrStdout(), []string{"name", "type"}, table)
			})
		},
	}
	cmd.Flags().StringVar(&hasUser, "has", "", "Report whether this user is a member")
	cmd.Flags().BoolVar(&shallow, "shallow", false, "With --has, ignore nested groups")
	return cmd
}
