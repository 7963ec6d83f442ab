package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"taskline/internal/app"
	"taskline/internal/domain"
	"taskline/internal/engine"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskListCmd(), taskCreateCmd(), taskStatusCmd(), taskReassignCmd(), taskSummaryCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				tasks, err := a.Engine.ListTasks(ctx, p)
				if err != nil {
					return err
				}
				if status != "" {
					want, ok := domain.ParseStatus(status, a.Config.Tasks.AcceptLegacyCompleted)
					if !ok {
						return fmt.Errorf("unknown status %q", status)
					}
					filtered := tasks[:0]
					for _, t := range tasks {
						if t.Status == want {
							filtered = append(filtered, t)
						}
					}
					tasks = filtered
				}
				return printJSONOrTable(tasks, func() { renderTasks(tasks) })
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show tasks in this status")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var d engine.TaskDraft
	var assigned, due, manager string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			d.AssignedDate = optionalString(assigned)
			d.DueDate = optionalString(due)
			d.ManagerID = optionalString(manager)
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				t, err := a.Engine.CreateTask(ctx, p, d)
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func() { renderTasks([]domain.Task{t}) })
			})
		},
	}
	cmd.Flags().StringVar(&d.ID, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&d.Title, "title", "", "task title")
	cmd.Flags().StringVar(&d.Description, "description", "", "task description")
	cmd.Flags().StringVar(&d.EmployeeID, "employee", "", "assignee user id")
	cmd.Flags().StringVar(&d.Department, "department", "", "department (defaults to the assignee's)")
	cmd.Flags().StringVar(&d.Severity, "severity", string(domain.SeverityMedium), "High, Medium or Low")
	cmd.Flags().StringVar(&assigned, "assigned", "", "assigned date YYYY-MM-DD")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&manager, "manager", "", "responsible manager (defaults to the actor)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				t, err := a.Engine.UpdateStatus(ctx, p, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func() { renderTasks([]domain.Task{t}) })
			})
		},
	}
}

func taskReassignCmd() *cobra.Command {
	var employee, due, reason string
	cmd := &cobra.Command{
		Use:   "reassign <task-id>",
		Short: "Move a task to another assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ReassignOptions{
				TaskID:     args[0],
				EmployeeID: employee,
				DueDate:    optionalString(due),
				Reason:     reason,
			}
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				t, err := a.Engine.ReassignTask(ctx, p, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func() { renderTasks([]domain.Task{t}) })
			})
		},
	}
	cmd.Flags().StringVar(&employee, "to", "", "new assignee user id")
	cmd.Flags().StringVar(&due, "due", "", "new due date YYYY-MM-DD")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the event log")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func taskSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count the tasks visible to the actor by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, a *app.App, p domain.Principal) error {
				counts, err := a.Engine.StatusCounts(ctx, p)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Status", "Tasks"})
					for _, s := range statusOrder {
						tw.AppendRow(table.Row{s, counts[string(s)]})
					}
					tw.Render()
				})
			})
		},
	}
}

var statusOrder = []domain.Status{
	domain.StatusNew,
	domain.StatusInProgress,
	domain.StatusSubmitted,
	domain.StatusRework,
	domain.StatusApproved,
	domain.StatusCancelled,
}

func renderTasks(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Assignee", "Manager", "Severity", "Status", "Rework", "Due", "Completed"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{
			t.ID, t.Title, t.EmployeeID, deref(t.ManagerID), t.Severity, t.Status,
			t.ReworkCount, deref(t.DueDate), deref(t.CompletedDate),
		})
	}
	tw.Render()
}
