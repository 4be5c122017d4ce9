// Command tripwatch mirrors a plan's proposals, votes and messages live and
// prints the tallies every time they change.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"TRIPCOLLAB_BACK-END/internal/client"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/logging"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/realtime"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type options struct {
	server   string
	plan     uuid.UUID
	email    string
	token    string
	say      string
	once     bool
	logLevel string
	echo     time.Duration
	pending  time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("tripwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	var plan string
	fs.StringVar(&o.server, "server", envOr("TRIPWATCH_SERVER", "http://localhost:8080"), "API base URL")
	fs.StringVar(&plan, "plan", "", "plan id to watch (required)")
	fs.StringVar(&o.email, "email", os.Getenv("TRIPWATCH_EMAIL"), "login email; the password is prompted")
	fs.StringVar(&o.token, "token", os.Getenv("TRIPWATCH_TOKEN"), "bearer token instead of email login")
	fs.StringVar(&o.say, "say", "", "post this message optimistically after connecting")
	fs.BoolVar(&o.once, "once", false, "print the current state and exit")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	fs.DurationVar(&o.echo, "echo-window", 5*time.Second, "how long an optimistic entry waits for its echo")
	fs.DurationVar(&o.pending, "pending-timeout", 15*time.Second, "roll back optimistic entries not confirmed in time")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if plan == "" {
		return options{}, errors.New("-plan is required")
	}
	id, err := uuid.Parse(plan)
	if err != nil {
		return options{}, fmt.Errorf("-plan: %w", err)
	}
	o.plan = id
	if o.token == "" && o.email == "" {
		return options{}, errors.New("one of -token or -email is required")
	}
	return o, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewWithWriter(config.LogConfig{Level: opts.logLevel, Format: "console"}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log, os.Stdout); err != nil {
		log.Error().Err(err).Msg("tripwatch failed")
		os.Exit(1)
	}
}

func login(ctx context.Context, c *client.Client, opts options) (models.Identity, error) {
	if opts.token != "" {
		return c.Me(ctx)
	}
	fmt.Fprint(os.Stderr, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		// not a terminal; read a line instead
		line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil && line == "" {
			return models.Identity{}, fmt.Errorf("read password: %w", err)
		}
		pw = []byte(strings.TrimSpace(line))
	}
	defer clear(pw)
	return c.Login(ctx, opts.email, string(pw))
}

func run(ctx context.Context, opts options, log zerolog.Logger, out io.Writer) error {
	c := client.New(opts.server, client.WithToken(opts.token))
	me, err := login(ctx, c, opts)
	if err != nil {
		return err
	}
	log.Info().Str("user", me.Email).Msg("signed in")

	plan, err := c.Plan(ctx, opts.plan)
	if err != nil {
		return err
	}

	rec := realtime.NewReconciler(opts.plan, c,
		realtime.WithEchoWindow(opts.echo),
		realtime.WithPendingTimeout(opts.pending),
		realtime.WithReconcilerLogger(log),
	)
	snap, err := c.Snapshot(ctx, opts.plan)
	if err != nil {
		return err
	}
	rec.Load(snap.Proposals, snap.Votes, snap.Messages)

	view := newView(out, plan.Plan, len(plan.Members))
	if opts.once {
		view.render(rec)
		return nil
	}

	events := make(chan models.ChangeEvent, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Watch(gctx, opts.plan, events,
			models.TableProposals, models.TableVotes, models.TableMessages, models.TablePlans)
	})
	g.Go(func() error {
		err := rec.Run(gctx, events)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		view.render(rec)
		for {
			select {
			case <-gctx.Done():
				return nil
			case ch := <-rec.Changes():
				if ch.State == realtime.OpFailed {
					if op, ok := rec.Op(ch.Correlation); ok {
						view.notice("rolled back: " + op.Err)
					}
				}
				view.render(rec)
			}
		}
	})
	if opts.say != "" {
		g.Go(func() error {
			if _, err := c.PostOptimistic(gctx, rec, opts.plan, opts.say); err != nil {
				log.Warn().Err(err).Msg("message not posted")
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
