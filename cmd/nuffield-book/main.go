package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	bot "github.com/zegheim/nuffield-book-classes"
	"github.com/zegheim/nuffield-book-classes/internal/config"
	"github.com/zegheim/nuffield-book-classes/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cmd := newCommand(os.Stdout, os.Stderr, time.Now)
	if err := cmd.ExecuteContext(ctx); err != nil {
		report.Failure(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type options struct {
	lane      string
	daysAhead int
	envFile   string
	dryRun    bool
	output    string
	verbose   bool
}

func newCommand(stdout, stderr io.Writer, now func() time.Time) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "nuffield-book START_TIME",
		Short: "Book a swimming lane slot at a Nuffield Health club",
		Long: `Signs in to the Nuffield Health member portal, looks up the swimming
slots released for the target date and books the one that starts at
START_TIME in the requested lane.

START_TIME is given in HHMM format (8AM -> 800, 7PM -> 1900).`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), stdout, now, args[0], opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.lane, "lane", "l", bot.Medium.String(), "lane to swim in: SLOW, MEDIUM or FAST")
	flags.IntVarP(&opts.daysAhead, "days-ahead", "d", 8, "how many days forward to book for")
	flags.StringVarP(&opts.envFile, "env", "e", ".env", "path to the file holding the account settings")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "skip the booking hour check")
	flags.StringVarP(&opts.output, "output", "o", report.Text, "output format: "+strings.Join(report.Formats, ", "))
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every request")
	return cmd
}

func run(ctx context.Context, stdout io.Writer, now func() time.Time, startArg string, opts options) error {
	// Arguments are checked before anything touches the network.
	start, err := bot.ParseStartTime(startArg)
	if err != nil {
		return err
	}
	lane, err := bot.ParseLane(opts.lane)
	if err != nil {
		return err
	}
	if opts.daysAhead < 0 {
		return fmt.Errorf("days ahead must not be negative, got %d", opts.daysAhead)
	}
	if !report.Valid(opts.output) {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	log := logrus.WithField("run", uuid.NewString())
	today := now().In(cfg.Location)
	log.Infof("local time now is %s", today.Format(time.RFC3339))
	if today.Hour() != cfg.BookingOpenHour && !opts.dryRun {
		log.Warnf("%d != %d, skipping", today.Hour(), cfg.BookingOpenHour)
		return nil
	}

	b, err := bot.New(cfg.Bot(), bot.WithLogger(log))
	if err != nil {
		return err
	}
	booking, err := b.Book(ctx, bot.Request{
		Date:  bot.TargetDate(today, opts.daysAhead, cfg.Location),
		Start: start,
		Lane:  lane,
	})
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	if err != nil {
		return err
	}
	return report.Success(stdout, opts.output, booking)
}
