package cli

import (
	"github.com/spf13/cobra"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/pkg/client"
)

func projectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List and create projects",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List personal and team projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := app.client().Projects(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			printProjects(app.Out, projects)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "page offset")

	var req transport.ProjectRequest
	var teamID string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project, optionally owned by a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			if teamID != "" {
				req.TeamID = &teamID
			}
			project, err := app.client().CreateProject(cmd.Context(), req)
			if err != nil {
				return err
			}
			app.printf("Created project %s (%s)\n", project.Name, project.ID)
			return nil
		},
	}
	create.Flags().StringVar(&req.Description, "description", "", "project description")
	create.Flags().StringVar(&teamID, "team", "", "owning team id")

	remove := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client().DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.printf("Deleted project %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, remove)
	return cmd
}

func tasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage tasks inside a project",
	}

	var filter client.TaskFilter
	list := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := app.client().Tasks(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			printTasks(app.Out, tasks)
			return nil
		},
	}
	list.Flags().StringVar(&filter.Status, "status", "", "only tasks in this status")
	list.Flags().StringVar(&filter.Assignee, "assignee", "", "only tasks assigned to this user id")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "page size")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "page offset")

	var req transport.TaskRequest
	create := &cobra.Command{
		Use:   "create <project-id> <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ProjectID, req.Title = args[0], args[1]
			task, err := app.client().CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			app.printf("Created task %s in %s\n", task.ID, task.Status)
			return nil
		},
	}
	create.Flags().StringVar(&req.Description, "description", "", "task description")
	create.Flags().StringVar(&req.Status, "status", "", "todo, in_progress or done")
	create.Flags().StringVar(&req.Priority, "priority", "", "low, medium or high")
	create.Flags().StringVar(&req.DueDate, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	create.Flags().StringSliceVar(&req.Assignees, "assignee", nil, "assignee user id, repeatable")

	move := &cobra.Command{
		Use:   "move <task-id> <status>",
		Short: "Move a task to another status column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := app.client().MoveTask(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			app.printf("Task %s is now %s\n", task.ID, task.Status)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client().DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.printf("Deleted task %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, move, remove)
	return cmd
}
