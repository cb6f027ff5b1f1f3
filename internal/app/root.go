package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/provider"
	"github.com/agis/unical/internal/schedule"
)

var nowFunc = time.Now

type globalOptions struct {
	JSON          bool
	JSONL         bool
	Plain         bool
	Fields        string
	Quiet         bool
	Verbose       bool
	NoColor       bool
	NoInput       bool
	Profile       string
	Config        string
	TZ            string
	Timeout       time.Duration
	SchemaVersion string

	Account      string
	TokenDB      string
	Granularity  int
	Google       providerConfig
	Outlook      providerConfig
	Availability map[string]string
}

// session is the resolved per-command state every subcommand starts from.
type session struct {
	printer output.Printer
	opts    *globalOptions
	logger  *slog.Logger
	loc     *time.Location
	engine  schedule.Engine
	command string
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		Timeout:       20 * time.Second,
		SchemaVersion: contract.SchemaVersion,
		Account:       "default",
		Granularity:   30,
	}

	root := &cobra.Command{
		Use:           "unical",
		Short:         "One schedule across Google Calendar and Outlook",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("unical {{.Version}}\n")

	root.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	root.PersistentFlags().BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	root.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	root.PersistentFlags().StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	root.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&opts.NoInput, "no-input", false, "Disable prompts")
	root.PersistentFlags().StringVar(&opts.Profile, "profile", "default", "Config profile")
	root.PersistentFlags().StringVar(&opts.Config, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA timezone for days, slots and output")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 20*time.Second, "Provider call timeout (e.g. 10s, 1m, 0 to disable)")
	root.PersistentFlags().StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newMonthCmd(opts))
	root.AddCommand(newDayCmd(opts))
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newCompletionCmd(root))

	return root
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (*session, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return nil, Wrap(2, err)
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return nil, Wrap(2, errors.New("--json, --jsonl, and --plain are mutually exclusive"))
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		NoColor:       resolved.NoColor,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}

	loc, err := loadLocation(resolved.TZ)
	if err != nil {
		_ = printer.Error(contract.ErrInvalidUsage, err.Error(), "Use an IANA zone such as Europe/Berlin")
		return nil, WrapPrinted(2, err)
	}
	logger := newLogger(printer.Err, resolved)
	logger.Debug("run", "command", command, "mode", mode, "tz", loc.String(), "profile", resolved.Profile, "timeout", resolved.Timeout)
	return &session{
		printer: printer,
		opts:    resolved,
		logger:  logger,
		loc:     loc,
		engine:  schedule.New(loc),
		command: command,
	}, nil
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	timing := &timingRecorder{calls: map[string]time.Duration{}}
	base := context.WithValue(context.Background(), timingContextKey{}, timing)
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, ro.Timeout)
}

type timeoutResult[T any] struct {
	val T
	err error
}

type timingContextKey struct{}

type timingRecorder struct {
	mu    sync.Mutex
	calls map[string]time.Duration
}

func (r *timingRecorder) add(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name] += d
}

func providerTimings(ctx context.Context) map[string]string {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rec.calls))
	for k := range rec.calls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = rec.calls[k].String()
	}
	return out
}

func withTimeout[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	ch := make(chan timeoutResult[T], 1)
	go func() {
		v, err := fn()
		ch <- timeoutResult[T]{val: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}

func loadMonthWithTimeout(ctx context.Context, agg *aggregate.Aggregator, month time.Time) (aggregate.View, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() (aggregate.View, error) {
		return agg.Load(ctx, month)
	})
	err = annotateProviderError(ctx, "aggregate.load", err)
	recordTiming(ctx, "aggregate.load", time.Since(start))
	for src, d := range v.Timings {
		recordTiming(ctx, "provider."+string(src)+".fetch_month", d)
	}
	return v, err
}

type addResult struct {
	event *contract.Event
	view  aggregate.View
}

func addEventWithTimeout(ctx context.Context, agg *aggregate.Aggregator, source contract.Source, in provider.EventInput) (*contract.Event, aggregate.View, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() (addResult, error) {
		ev, view, err := agg.AddEvent(ctx, source, in)
		return addResult{event: ev, view: view}, err
	})
	err = annotateProviderError(ctx, "provider.add_event", err)
	recordTiming(ctx, "provider.add_event", time.Since(start))
	return v.event, v.view, err
}

func deleteEventWithTimeout(ctx context.Context, agg *aggregate.Aggregator, id string, source contract.Source) (aggregate.View, error) {
	start := time.Now()
	v, err := withTimeout(ctx, func() (aggregate.View, error) {
		return agg.DeleteEvent(ctx, id, source)
	})
	err = annotateProviderError(ctx, "provider.delete_event", err)
	recordTiming(ctx, "provider.delete_event", time.Since(start))
	return v, err
}

func recordTiming(ctx context.Context, name string, d time.Duration) {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return
	}
	rec.add(name, d)
}

func successWithMeta(ctx context.Context, s *session, data any, meta map[string]any, warnings []string) error {
	if s.opts.Verbose {
		timings := providerTimings(ctx)
		if len(timings) > 0 {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["timings"] = timings
			s.logger.Debug("timings", "calls", timings)
		}
	}
	return s.printer.Success(data, meta, warnings)
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func errorCodeForExit(code int) contract.ErrorCode {
	switch code {
	case exitUsage:
		return contract.ErrInvalidUsage
	case exitAuth:
		return contract.ErrAuthRequired
	case exitNotFound:
		return contract.ErrNotFound
	case exitProvider:
		return contract.ErrProviderUnavailable
	default:
		return contract.ErrGeneric
	}
}

func loadLocation(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return nil, fmt.Errorf("invalid --tz %q: %w", tz, err)
	}
	return loc, nil
}

func parseSource(v string) (contract.Source, error) {
	s := contract.Source(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q: use google or outlook", v)
	}
	return s, nil
}

func stdinInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptConfirmID(in io.Reader, out io.Writer, expected string) (bool, error) {
	if _, err := fmt.Fprintf(out, "Type event ID to confirm delete: "); err != nil {
		return false, err
	}
	var entered string
	if _, err := fmt.Fscanln(in, &entered); err != nil {
		return false, err
	}
	return strings.TrimSpace(entered) == strings.TrimSpace(expected), nil
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
