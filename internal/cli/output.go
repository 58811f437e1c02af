package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/taskflow/backend/domain"
)

const untitled = "(untitled)"

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

// oneLine flattens text for single-line display.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return untitled
	}
	return s
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "-"
	}
	return due.Format("2006-01-02")
}

func printProjects(w io.Writer, projects []domain.Project) {
	table(w, "ID\tNAME\tTEAM", func(tw *tabwriter.Writer) {
		for _, p := range projects {
			team := "personal"
			if p.IsTeamProject() {
				team = *p.TeamID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, oneLine(p.Name), team)
		}
	})
}

func printTasks(w io.Writer, tasks []domain.Task) {
	table(w, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE", func(tw *tabwriter.Writer) {
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, formatDue(t.DueDate), oneLine(t.Title))
		}
	})
}

func printComments(w io.Writer, comments []domain.Comment) {
	for _, c := range comments {
		fmt.Fprintf(w, "[%s] %s: %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.CreatedBy, oneLine(c.Content))
	}
}

func printTeams(w io.Writer, teams []domain.Team) {
	table(w, "ID\tNAME\tMEMBERS", func(tw *tabwriter.Writer) {
		for _, t := range teams {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", t.ID, oneLine(t.Name), t.Total)
		}
	})
}

func printMembers(w io.Writer, members []domain.Membership) {
	table(w, "ID\tNAME\tEMAIL\tROLES", func(tw *tabwriter.Writer) {
		for _, m := range members {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, oneLine(m.UserName), m.UserEmail, strings.Join(m.Roles, ","))
		}
	})
}

func printBoard(w io.Writer, columns map[string][]domain.Task) {
	for _, status := range domain.Statuses {
		tasks := columns[status]
		fmt.Fprintf(w, "== %s (%d)\n", status, len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(w, "   %s  %s\n", t.ID, oneLine(t.Title))
		}
	}
}

func printNotifications(w io.Writer, items []domain.Notification) {
	fmt.Fprintf(w, "-- notifications (%d)\n", len(items))
	for _, n := range items {
		fmt.Fprintf(w, "%s  %s: %s\n", n.CreatedAt.Local().Format("15:04:05"), n.Type, n.Message)
	}
}
