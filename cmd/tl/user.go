package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"taskline/internal/app"
	"taskline/internal/directory"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/scoring"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userListCmd(), userCreateCmd(), userActiveCmd("activate", true), userActiveCmd("deactivate", false), userPasswordCmd(), userTreeCmd())
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users by role then name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Engine.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(users, func() { renderUsers(users) })
			})
		},
	}
}

func userCreateCmd() *cobra.Command {
	var d engine.UserDraft
	var manager string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d.ManagerID = optionalString(manager)
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				u, err := a.Engine.CreateUser(ctx, p, d)
				if err != nil {
					return err
				}
				return printJSONOrTable(u, func() { renderUsers([]domain.User{u}) })
			})
		},
	}
	cmd.Flags().StringVar(&d.ID, "id", "", "user id")
	cmd.Flags().StringVar(&d.Name, "name", "", "display name")
	cmd.Flags().StringVar(&d.Role, "role", string(domain.RoleEmployee), "Admin, CFO, Manager or Employee")
	cmd.Flags().StringVar(&d.Department, "department", "", "department")
	cmd.Flags().StringVar(&manager, "manager", "", "manager user id")
	cmd.Flags().StringVar(&d.Password, "password", "", "initial password")
	for _, f := range []string{"id", "name", "department", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				u, err := a.Engine.SetUserActive(ctx, p, args[0], active)
				if err != nil {
					return err
				}
				return printJSONOrTable(u, func() { renderUsers([]domain.User{u}) })
			})
		},
	}
}

func userPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "password <user-id>",
		Short: "Reset a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				if err := a.Engine.ResetPassword(ctx, p, args[0], password); err != nil {
					return err
				}
				fmt.Printf("password reset for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the reporting hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				idx, err := a.Engine.OrgIndex(ctx)
				if err != nil {
					return err
				}
				printOrgTree(idx)
				return nil
			})
		},
	}
}

func printOrgTree(idx *directory.Index) {
	var walk func(u domain.User, prefix string, last bool, root bool)
	walk = func(u domain.User, prefix string, last bool, root bool) {
		label := fmt.Sprintf("%s %s (%s, %s)", u.ID, u.Name, u.Role, u.Department)
		if !u.Active {
			label += " [inactive]"
		}
		childPrefix := prefix
		if root {
			fmt.Println(label)
		} else {
			connector := "├── "
			if last {
				connector = "└── "
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
			fmt.Println(prefix + connector + label)
		}
		reports := idx.Reports(u.ID)
		for i, r := range reports {
			walk(r, childPrefix, i == len(reports)-1, false)
		}
	}
	for _, u := range idx.Roots() {
		walk(u, "", true, true)
	}
}

func renderUsers(users []domain.User) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Role", "Department", "Manager", "Active"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Role, u.Department, deref(u.ManagerID), u.Active})
	}
	tw.Render()
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var user, name string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				owner := user
				if owner == "" {
					owner = p.ID
				}
				plain, key, err := a.Engine.CreateAPIKey(ctx, p, owner, name)
				if err != nil {
					return err
				}
				out := map[string]string{"id": key.ID, "user_id": key.UserID, "name": key.Name, "key": plain}
				return printJSONOrTable(out, func() {
					fmt.Printf("api key %s for %s\n%s\n", key.ID, key.UserID, plain)
				})
			})
		},
	}
	createCmd.Flags().StringVar(&user, "user", "", "owner user id (defaults to the actor)")
	createCmd.Flags().StringVar(&name, "name", "", "label for the key")

	var listUser string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				owner := listUser
				if owner == "" {
					owner = p.ID
				}
				keys, err := a.Engine.ListAPIKeys(ctx, p, owner)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "User", "Name", "Created"})
					for _, k := range keys {
						tw.AppendRow(table.Row{k.ID, k.UserID, k.Name, k.CreatedAt})
					}
					tw.Render()
				})
			})
		},
	}
	listCmd.Flags().StringVar(&listUser, "user", "", "owner user id (defaults to the actor)")

	revokeCmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				if err := a.Engine.RevokeAPIKey(ctx, p, args[0]); err != nil {
					return err
				}
				fmt.Printf("revoked %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(createCmd, listCmd, revokeCmd)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Performance reports"}
	cmd.AddCommand(&cobra.Command{
		Use:   "rankings",
		Short: "Rank employees and managers by performance score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				r, err := a.Engine.Rankings(ctx, p)
				if err != nil {
					return err
				}
				return printJSONOrTable(r, func() {
					fmt.Println("Employees")
					renderRanking(r.Employees)
					fmt.Println("Managers")
					renderRanking(r.Managers)
				})
			})
		},
	})
	return cmd
}

func renderRanking(entries []scoring.Entry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Rank", "ID", "Name", "Department", "Score", "Tasks", "Completed"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.Rank, e.UserID, e.Name, e.Department, fmt.Sprintf("%.2f", e.Score), e.Tasks, e.Completed})
	}
	tw.Render()
}
