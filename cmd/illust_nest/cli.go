package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"illust_nest/internal/app"
	"illust_nest/internal/lib/validate"
	rest "illust_nest/internal/transport/http"
	"illust_nest/internal/transport/http/dto/response"

	"github.com/fatih/color"
)

var errUsage = errors.New("usage")

type cli struct {
	app *app.App
	log *slog.Logger
	out io.Writer
	in  *bufio.Reader
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

func (c *cli) commands() []command {
	return []command{
		{"login", "login -u USER [-p PASSWORD]", c.login},
		{"logout", "logout", c.logout},
		{"whoami", "whoami", c.whoami},
		{"password", "password [-new PASSWORD]", c.password},
		{"status", "status", c.status},
		{"init", "init -u USER [-p PASSWORD]", c.initSystem},
		{"settings", "settings [show|set|test]", c.settings},
		{"stats", "stats", c.stats},
		{"works", "works list|show|upload|add-images|edit|reorder|delete|publish|delete-image|exif|ai-meta", c.works},
		{"tags", "tags list|add|batch|rename|delete", c.tags},
		{"collections", "collections tree|create|move|delete|add-works|remove-works", c.collections},
		{"export", "export [-work ID] [-s3]", c.export},
		{"fetch", "fetch [-variant V] [-public] -o FILE PATH", c.fetch},
		{"serve", "serve", c.serve},
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		c.usage()
		return nil
	}

	for _, cmd := range c.commands() {
		if cmd.name != args[0] {
			continue
		}

		if cmd.name != "login" && cmd.name != "status" && cmd.name != "init" {
			if err := c.app.Restore(ctx); err != nil {
				return err
			}
		}

		err := cmd.run(ctx, args[1:])
		if errors.Is(err, errUsage) {
			fmt.Fprintln(c.out, "usage: illust_nest", cmd.usage)
		}
		return err
	}

	c.usage()
	return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func (c *cli) usage() {
	fmt.Fprintln(c.out, "usage: illust_nest [--config FILE] COMMAND")
	for _, cmd := range c.commands() {
		fmt.Fprintf(c.out, "  %s\n", cmd.usage)
	}
}

func (c *cli) ok(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(c.out, format+"\n", args...)
}

func (c *cli) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(c.out, format+"\n", args...)
}

// fail prints the message a user should see: the server text for
// application errors, a hint for validation and auth problems.
func (c *cli) fail(err error) {
	red := color.New(color.FgRed)

	switch {
	case errors.Is(err, errUsage):
		return
	case errors.Is(err, rest.ErrUnauthorized):
		red.Fprintln(c.out, "not logged in or session expired, run `illust_nest login`")
	case errors.Is(err, validate.ErrValidation):
		red.Fprintln(c.out, err.Error())
	default:
		red.Fprintln(c.out, response.Message(err))
	}
}

// prompt reads one line after printing label.
func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %v: %w", fs.Name(), err, errUsage)
	}
	return nil
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, validate.Fail("invalid id %q", s)
	}
	return uint(v), nil
}

// parseIDs accepts ids as separate arguments or comma separated.
func parseIDs(args []string) ([]uint, error) {
	var ids []uint
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// optionalID parses a flag value where an empty string means no id.
func optionalID(s string) (*uint, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func subcommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

func stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
