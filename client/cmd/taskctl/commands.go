package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/session"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/usersvc"
)

// backend is the part of *client.Client the commands use.
type backend interface {
	Register(ctx context.Context, r usersvc.Registration) (session.Token, error)
	Login(ctx context.Context, c usersvc.Credentials) (session.Token, error)
	Logout(ctx context.Context) error
	Whoami() (authsvc.Claim, error)
	Tasks(ctx context.Context) ([]tasksvc.Task, error)
	CreateTask(ctx context.Context, t tasksvc.NewTask) (tasksvc.Task, error)
	Task(ctx context.Context, id uint64) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, id uint64, p tasksvc.TaskPatch) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, id uint64) error
}

type command struct {
	name  string
	args  string
	help  string
	nargs [2]int
	run   func(ctx context.Context, c backend, args []string, w io.Writer) error
}

var commands = []command{
	{"register", "<email> <password> [name]", "create an account and sign in", [2]int{2, 3}, register},
	{"login", "<email> <password>", "sign in", [2]int{2, 2}, login},
	{"logout", "", "sign out", [2]int{0, 0}, logout},
	{"whoami", "", "show the signed in user", [2]int{0, 0}, whoami},
	{"list", "", "list tasks, newest first", [2]int{0, 0}, list},
	{"add", "<title> [description]", "create a task", [2]int{1, 2}, add},
	{"show", "<id>", "show a task", [2]int{1, 1}, show},
	{"done", "<id>", "mark a task completed", [2]int{1, 1}, setCompleted(true)},
	{"undo", "<id>", "mark a task not completed", [2]int{1, 1}, setCompleted(false)},
	{"rename", "<id> <title>", "change the title of a task", [2]int{2, 2}, rename},
	{"describe", "<id> <description>", "change the description of a task", [2]int{2, 2}, describe},
	{"rm", "<id>", "delete a task", [2]int{1, 1}, remove},
}

var errUsage = errors.New("usage: taskctl [flags] <command> [args...]; run with -h for the list of commands")

func run(ctx context.Context, c backend, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		rest := args[1:]
		if len(rest) < cmd.nargs[0] || len(rest) > cmd.nargs[1] {
			return fmt.Errorf("usage: taskctl %s %s", cmd.name, cmd.args)
		}
		return cmd.run(ctx, c, rest, w)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func register(ctx context.Context, c backend, args []string, w io.Writer) error {
	r := usersvc.Registration{Email: args[0], Password: args[1]}
	if len(args) == 3 {
		r.Name = &args[2]
	}
	t, err := c.Register(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "registered and signed in as %s\n", t.Claim.Email)
	return nil
}

func login(ctx context.Context, c backend, args []string, w io.Writer) error {
	t, err := c.Login(ctx, usersvc.Credentials{Email: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "signed in as %s until %s\n", t.Claim.Email, t.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func logout(ctx context.Context, c backend, _ []string, w io.Writer) error {
	if err := c.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "signed out")
	return nil
}

func whoami(_ context.Context, c backend, _ []string, w io.Writer) error {
	claim, err := c.Whoami()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (id %d)\n", claim.Email, claim.UserID)
	return nil
}

func list(ctx context.Context, c backend, _ []string, w io.Writer) error {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tTITLE\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, check(t.Completed), t.Title, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func add(ctx context.Context, c backend, args []string, w io.Writer) error {
	nt := tasksvc.NewTask{Title: args[0]}
	if len(args) == 2 {
		nt.Description = &args[1]
	}
	t, err := c.CreateTask(ctx, nt)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created task %d\n", t.ID)
	return nil
}

func show(ctx context.Context, c backend, args []string, w io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := c.Task(ctx, id)
	if err != nil {
		return err
	}
	printTask(w, t)
	return nil
}

func setCompleted(completed bool) func(context.Context, backend, []string, io.Writer) error {
	return func(ctx context.Context, c backend, args []string, w io.Writer) error {
		return update(ctx, c, args[0], tasksvc.TaskPatch{Completed: &completed}, w)
	}
}

func rename(ctx context.Context, c backend, args []string, w io.Writer) error {
	return update(ctx, c, args[0], tasksvc.TaskPatch{Title: &args[1]}, w)
}

func describe(ctx context.Context, c backend, args []string, w io.Writer) error {
	return update(ctx, c, args[0], tasksvc.TaskPatch{Description: &args[1]}, w)
}

func update(ctx context.Context, c backend, rawID string, p tasksvc.TaskPatch, w io.Writer) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	t, err := c.UpdateTask(ctx, id, p)
	if err != nil {
		return err
	}
	printTask(w, t)
	return nil
}

func remove(ctx context.Context, c backend, args []string, w io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := c.DeleteTask(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted task %d\n", id)
	return nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printTask(w io.Writer, t tasksvc.Task) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%d\n", t.ID)
	fmt.Fprintf(tw, "title\t%s\n", t.Title)
	if t.Description != nil {
		fmt.Fprintf(tw, "description\t%s\n", strings.TrimSpace(*t.Description))
	}
	fmt.Fprintf(tw, "completed\t%t\n", t.Completed)
	fmt.Fprintf(tw, "created\t%s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "updated\t%s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	tw.Flush()
}

func check(b bool) string {
	if b {
		return "x"
	}
	return " "
}
