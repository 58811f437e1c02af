package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/pkg/board"
	"github.com/taskflow/backend/pkg/client"
	"github.com/taskflow/backend/pkg/reconcile"
)

const (
	maxNotifications = 5
	watchPageSize    = 100
)

func watchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live changes until interrupted",
	}
	cmd.AddCommand(watchCommentsCmd(app), watchBoardCmd(app), watchNotificationsCmd(app))
	return cmd
}

func watchCommentsCmd(app *App) *cobra.Command {
	var flags scopeFlags
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Follow a comment thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := flags.scope()
			if err != nil {
				return err
			}
			c := app.client()
			initial, err := c.Comments(cmd.Context(), scope, watchPageSize, 0)
			if err != nil {
				return err
			}
			thread := reconcile.New(
				func(c domain.Comment) string { return c.ID },
				reconcile.WithScope(func(c domain.Comment) bool { return scope.Matches(&c) }),
				reconcile.Prepend[domain.Comment](),
			)
			thread.Reset(initial)
			printComments(app.Out, thread.Items())

			return c.Subscribe(cmd.Context(), []string{domain.CollectionComments}, func(ev domain.Event) error {
				changed, err := thread.ApplyEvent(ev.Events, ev.Payload)
				if err != nil {
					app.Logger.Warn("skipping undecodable comment event", zap.Strings("events", ev.Events), zap.Error(err))
					return nil
				}
				if changed {
					fmt.Fprintln(app.Out, "--")
					printComments(app.Out, thread.Items())
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// watchBoardCmd renders a project's board and applies moves typed on stdin
// as "<task-id> <status>" lines. Moves show up immediately and are rolled
// back if the server rejects them.
func watchBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board <project-id>",
		Short: "Follow a project's board and move tasks from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := app.client()
			tasks, err := c.Tasks(ctx, args[0], client.TaskFilter{Limit: watchPageSize})
			if err != nil {
				return err
			}

			var (
				out sync.Mutex
				b   *board.Board
			)
			render := func() {
				out.Lock()
				defer out.Unlock()
				fmt.Fprintln(app.Out, "--")
				printBoard(app.Out, b.Columns())
			}
			b = board.New(args[0], tasks, func(ctx context.Context, taskID, status string) error {
				_, err := c.MoveTask(ctx, taskID, status)
				return err
			})
			render()

			if app.In != nil {
				go readMoves(ctx, app, b, render)
			}

			return c.Subscribe(ctx, []string{domain.CollectionTasks}, func(ev domain.Event) error {
				changed, err := b.Apply(ev.Events, ev.Payload)
				if err != nil {
					app.Logger.Warn("skipping undecodable task event", zap.Strings("events", ev.Events), zap.Error(err))
					return nil
				}
				if changed {
					render()
				}
				return nil
			})
		},
	}
}

func readMoves(ctx context.Context, app *App, b *board.Board, render func()) {
	scanner := bufio.NewScanner(app.In)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			fmt.Fprintln(app.Err, "usage: <task-id> <status>")
			continue
		}
		moved, err := b.Move(ctx, fields[0], fields[1])
		switch {
		case err != nil:
			fmt.Fprintf(app.Err, "move %s failed: %v\n", fields[0], err)
			render()
		case moved:
			render()
		}
	}
}

func watchNotificationsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Follow your notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.client()
			user, err := c.Account(cmd.Context())
			if err != nil {
				return err
			}
			var feed notificationFeed
			return c.Subscribe(cmd.Context(), []string{domain.UserChannel(user.ID)}, func(ev domain.Event) error {
				var n domain.Notification
				if err := json.Unmarshal(ev.Payload, &n); err != nil {
					app.Logger.Warn("skipping undecodable notification", zap.Error(err))
					return nil
				}
				feed.Add(n)
				printNotifications(app.Out, feed.Items())
				return nil
			})
		},
	}
}

// notificationFeed keeps the newest few notifications.
type notificationFeed struct {
	items []domain.Notification
}

func (f *notificationFeed) Add(n domain.Notification) {
	f.items = append([]domain.Notification{n}, f.items...)
	if len(f.items) > maxNotifications {
		f.items = f.items[:maxNotifications]
	}
}

func (f *notificationFeed) Items() []domain.Notification {
	return f.items
}
