// Command lockfree walks through the lockfree primitives and runs the
// stress scenarios against them.
//
//	lockfree demo
//	lockfree stress -scenario=all -duration=10s -writers=8 -readers=8
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/llxisdsh/lockfree/stress"
)

const usage = `usage: lockfree <command> [flags]

commands:
  demo     print a scripted walkthrough of every primitive
  stress   run stress scenarios (lockfree stress -h for flags)
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "demo":
		if err := runDemo(stdout); err != nil {
			fmt.Fprintf(stderr, "demo: %v\n", err)
			return 1
		}
		return 0
	case "stress":
		return runStress(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

var scenarios = []string{"noloss", "ordering", "multiwriter", "counter"}

func runStress(ctx context.Context, args []string, stderr io.Writer) int {
	def := stress.DefaultConfig()
	fs := flag.NewFlagSet("stress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenario := fs.String("scenario", "all", "scenario to run: "+strings.Join(scenarios, "|")+"|all")
	duration := fs.Duration("duration", def.Duration, "run time per scenario")
	writers := fs.Int("writers", def.Writers, "writer (or incrementer) goroutines")
	readers := fs.Int("readers", def.Readers, "reader (or syncer) goroutines")
	capacity := fs.Int("capacity", def.Capacity, "buffer slots, 0 for writers+readers+1")
	jitter := fs.Bool("jitter", false, "yield at random points in workers")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -log-level: %v\n", err)
		return 2
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).
		Level(level).
		With().Timestamp().Logger()

	cfg := stress.Config{
		Duration: *duration,
		Writers:  *writers,
		Readers:  *readers,
		Capacity: *capacity,
		Jitter:   *jitter,
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("bad configuration")
		return 2
	}

	names := scenarios
	if *scenario != "all" {
		if !slices.Contains(scenarios, *scenario) {
			log.Error().Err(fmt.Errorf("%w %q", errUnknownScenario, *scenario)).Msg("bad configuration")
			return 2
		}
		names = []string{*scenario}
	}

	failed := false
	for _, name := range names {
		log.Info().
			Str("scenario", name).
			Dur("duration", cfg.Duration).
			Int("writers", cfg.Writers).
			Int("readers", cfg.Readers).
			Msg("starting")
		ok, err := runScenario(ctx, log, name, cfg)
		if err != nil {
			log.Error().Err(err).Str("scenario", name).Msg("scenario aborted")
			return 1
		}
		if !ok {
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

var errUnknownScenario = errors.New("unknown scenario")

func runScenario(ctx context.Context, log zerolog.Logger, name string, cfg stress.Config) (bool, error) {
	var ev *zerolog.Event
	var ok bool
	switch name {
	case "noloss":
		r, err := stress.NoLoss(ctx, cfg)
		if err != nil {
			return false, err
		}
		ok = r.OK()
		ev = result(log, ok).
			Uint64("written", r.Written).
			Uint64("taken", r.Taken).
			Uint64("leftover", r.Leftover).
			Uint64("writes", r.Writes).
			Uint64("takes", r.Takes)
	case "ordering", "multiwriter":
		fn := stress.MultiWriterOrdering
		if name == "ordering" {
			fn = stress.Ordering
		}
		r, err := fn(ctx, cfg)
		if err != nil {
			return false, err
		}
		ok = r.OK()
		ev = result(log, ok).
			Uint64("reads", r.Reads).
			Uint64("violations", r.Violations).
			Interface("written", r.Written).
			Interface("observed", r.Observed)
		if len(r.Window) > 0 {
			ev = ev.Interface("window", r.Window)
		}
	case "counter":
		r, err := stress.Counter(ctx, cfg)
		if err != nil {
			return false, err
		}
		ok = r.OK()
		ev = result(log, ok).
			Uint64("increments", r.Increments).
			Uint64("final", r.Final).
			Bool("stable", r.Stable).
			Uint64("count1", r.Count1).
			Uint64("count2", r.Count2).
			Uint64("apart", r.Apart).
			Interface("reader_finals", r.ReaderFinals)
	default:
		return false, fmt.Errorf("%w %q", errUnknownScenario, name)
	}
	ev.Str("scenario", name).Bool("ok", ok).Msg("finished")
	return ok, nil
}

func result(log zerolog.Logger, ok bool) *zerolog.Event {
	if ok {
		return log.Info()
	}
	return log.Error()
}
