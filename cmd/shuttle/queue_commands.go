package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
	"shuttle/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthSubcommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upload tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				tasks, err := access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.SortQueueTasksNewestFirst(tasks))
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Client", "Remote Path", "Status", "Progress", "Size", "Created"},
					buildQueueListRows(tasks),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, uploading, processing, completed, error)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print tasks as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <taskID>",
		Short: "Show details for a single upload task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				task, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %d not found", id)
				}
				if jsonOutput {
					return writeJSON(cmd, task)
				}
				printTaskDetail(cmd, task)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the task as JSON")
	return cmd
}

func printTaskDetail(cmd *cobra.Command, task *api.QueueTask) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task:         #%d (%s)\n", task.ID, task.TaskKey)
	fmt.Fprintf(out, "Client:       %s (%s)\n", formatOptional(task.ClientName), formatOptional(task.ClientID))
	fmt.Fprintf(out, "Status:       %s\n", formatStatusLabel(task.Status))
	fmt.Fprintf(out, "Remote path:  %s\n", task.RemotePath)
	fmt.Fprintf(out, "Source path:  %s\n", formatOptional(task.SourcePath))
	fmt.Fprintf(out, "Spool path:   %s\n", formatOptional(task.SpoolPath))
	fmt.Fprintf(out, "Media:        %s, %s, %s\n", formatOptional(task.MediaKind), formatDuration(task.DurationSeconds), formatOptional(task.ContentType))
	fmt.Fprintf(out, "Size:         %d bytes\n", task.Size)
	if task.Progress.BytesTotal > 0 {
		fmt.Fprintf(out, "Progress:     %.1f%% (%d/%d bytes)\n", task.Progress.Percent, task.Progress.BytesSent, task.Progress.BytesTotal)
	}
	if strings.TrimSpace(task.ErrorMessage) != "" {
		fmt.Fprintf(out, "Error:        %s\n", task.ErrorMessage)
	}
	fmt.Fprintf(out, "Hook invoked: %s\n", yesNo(task.HookInvoked))
	fmt.Fprintf(out, "Notified:     %s\n", yesNo(task.Notified))
	fmt.Fprintf(out, "Created:      %s\n", formatDisplayTime(task.CreatedAt))
	fmt.Fprintf(out, "Updated:      %s\n", formatDisplayTime(task.UpdatedAt))
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <taskID...>",
		Short: "Remove upload tasks from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTaskIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, err := access.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks\n", removed)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [taskID...]",
		Short: "Reset errored upload tasks for another attempt",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTaskIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				var updated int64
				if len(ids) == 0 {
					updated, err = access.RetryAll(cmd.Context())
				} else {
					updated, err = access.Retry(cmd.Context(), ids)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d errored tasks\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearErrored bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearErrored {
				return fmt.Errorf("--completed and --errored are mutually exclusive")
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				var removed int64
				var err error
				label := "tasks"
				switch {
				case clearCompleted:
					removed, err = access.ClearCompleted(cmd.Context())
					label = "completed tasks"
				case clearErrored:
					removed, err = access.ClearErrored(cmd.Context())
					label = "errored tasks"
				default:
					removed, err = access.ClearAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Only clear completed tasks")
	cmd.Flags().BoolVar(&clearErrored, "errored", false, "Only clear errored tasks")
	return cmd
}

func newQueueHealthSubcommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				health, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nActive: %d\nErrored: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Active,
					health.Errored,
					health.Completed,
				)
				return nil
			})
		},
	}
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func parseTaskIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseTaskID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
