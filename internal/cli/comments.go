package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
)

type scopeFlags struct {
	taskID    string
	projectID string
}

func (s *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.taskID, "task", "", "task id")
	cmd.Flags().StringVar(&s.projectID, "project", "", "project id")
}

func (s *scopeFlags) scope() (domain.CommentScope, error) {
	scope := domain.CommentScope{TaskID: s.taskID, ProjectID: s.projectID}
	if scope.Validate() != nil {
		return scope, errors.New("pass exactly one of --task or --project")
	}
	return scope, nil
}

func commentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"comment"},
		Short:   "Read and write discussion threads",
	}

	var listScope scopeFlags
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List a thread, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := listScope.scope()
			if err != nil {
				return err
			}
			comments, err := app.client().Comments(cmd.Context(), scope, limit, 0)
			if err != nil {
				return err
			}
			printComments(app.Out, comments)
			return nil
		},
	}
	listScope.register(list)
	list.Flags().IntVar(&limit, "limit", 0, "page size")

	var addScope scopeFlags
	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Post a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := addScope.scope()
			if err != nil {
				return err
			}
			comment, err := app.client().AddComment(cmd.Context(), transport.CommentRequest{
				Content:   args[0],
				TaskID:    scope.TaskID,
				ProjectID: scope.ProjectID,
			})
			if err != nil {
				return err
			}
			app.printf("Posted comment %s\n", comment.ID)
			return nil
		},
	}
	addScope.register(add)

	remove := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client().DeleteComment(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.printf("Deleted comment %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
