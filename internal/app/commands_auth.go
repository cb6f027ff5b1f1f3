package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agis/unical/internal/auth"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
)

var loginFlow = auth.Login

var allSources = []contract.Source{contract.SourceGoogle, contract.SourceOutlook}

type providerStatus struct {
	Source      contract.Source `json:"source"`
	Configured  bool            `json:"configured"`
	SignedIn    bool            `json:"signed_in"`
	Refreshable bool            `json:"refreshable"`
	Expiry      *time.Time      `json:"expiry,omitempty"`
	ExpiresIn   string          `json:"expires_in,omitempty"`
}

type statusResult struct {
	Ready         bool             `json:"ready"`
	Account       string           `json:"account"`
	Profile       string           `json:"profile"`
	TZ            string           `json:"tz"`
	TokenDB       string           `json:"token_db"`
	OutputMode    string           `json:"output_mode"`
	SchemaVersion string           `json:"schema_version"`
	Providers     []providerStatus `json:"providers"`
	NextSteps     []string         `json:"next_steps,omitempty"`
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "login <google|outlook>",
		Short:     "Sign in to a calendar provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"google", "outlook"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildContext(cmd, opts, "login")
			if err != nil {
				return err
			}
			source, err := parseSource(args[0])
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "", exitUsage)
			}
			if s.opts.NoInput {
				return failWithHint(s.printer, contract.ErrInvalidUsage, errors.New("login needs interactive input"), "Drop --no-input and paste the authorization code when asked", exitUsage)
			}
			cfg, err := auth.Config(source, s.opts.providerConfig(source).credentials())
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, fmt.Sprintf("Set client_id under [%s] in %s or UNICAL_%s_CLIENT_ID", source, s.opts.Config, strings.ToUpper(string(source))), exitUsage)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tok, err := loginFlow(ctx, cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return failWithHint(s.printer, contract.ErrAuthRequired, err, "Retry `unical login "+string(source)+"`", exitAuth)
			}

			store, err := openTokenStore(s.opts.TokenDB)
			if err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}
			defer func() { _ = store.Close() }()
			if err := store.Save(ctx, source, s.opts.Account, tok); err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}
			s.logger.Info("signed in", "source", source, "account", s.opts.Account)

			res := map[string]any{
				"source":  source,
				"account": s.opts.Account,
				"expiry":  tok.Expiry,
			}
			if s.printer.EffectiveSuccessMode() == output.ModePlain {
				s.printer.Plainf("signed in to %s (%s)\n", source, s.opts.Account)
				return nil
			}
			return successWithMeta(ctx, s, res, nil, nil)
		},
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "logout <google|outlook>",
		Short:     "Forget the stored token for a provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"google", "outlook"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildContext(cmd, opts, "logout")
			if err != nil {
				return err
			}
			source, err := parseSource(args[0])
			if err != nil {
				return failWithHint(s.printer, contract.ErrInvalidUsage, err, "", exitUsage)
			}
			ctx, cancel := commandContext(s.opts)
			defer cancel()

			store, err := openTokenStore(s.opts.TokenDB)
			if err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}
			defer func() { _ = store.Close() }()
			if err := store.Delete(ctx, source, s.opts.Account); err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}
			if s.printer.EffectiveSuccessMode() == output.ModePlain {
				s.printer.Plainf("signed out of %s (%s)\n", source, s.opts.Account)
				return nil
			}
			return successWithMeta(ctx, s, map[string]any{"source": source, "account": s.opts.Account, "signed_out": true}, nil, nil)
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sign-in state and active runtime configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := buildContext(cmd, opts, "status")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(s.opts)
			defer cancel()

			store, err := openTokenStore(s.opts.TokenDB)
			if err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "Check token_db in config.toml", exitGeneric)
			}
			defer func() { _ = store.Close() }()
			records, err := store.List(ctx)
			if err != nil {
				return failWithHint(s.printer, contract.ErrGeneric, err, "", exitGeneric)
			}

			res := buildStatus(s, records, nowFunc())
			meta := map[string]any{"ready": res.Ready, "count": len(res.Providers)}
			if s.printer.EffectiveSuccessMode() == output.ModePlain {
				_ = printStatusPlain(cmd.OutOrStdout(), res)
			} else {
				_ = successWithMeta(ctx, s, res, meta, nil)
			}
			if !res.Ready {
				return WrapPrinted(exitAuth, errors.New("no provider is signed in"))
			}
			return nil
		},
	}
}

func buildStatus(s *session, records []auth.Record, now time.Time) statusResult {
	res := statusResult{
		Account:       s.opts.Account,
		Profile:       s.opts.Profile,
		TZ:            s.loc.String(),
		TokenDB:       s.opts.TokenDB,
		OutputMode:    string(s.printer.EffectiveSuccessMode()),
		SchemaVersion: s.opts.SchemaVersion,
	}
	for _, src := range allSources {
		st := providerStatus{Source: src, Configured: s.opts.providerConfig(src).credentials().Configured()}
		for _, r := range records {
			if r.Source != src || r.Account != s.opts.Account {
				continue
			}
			st.SignedIn = true
			st.Refreshable = r.Refresh
			if !r.Expiry.IsZero() {
				expiry := r.Expiry
				st.Expiry = &expiry
				st.ExpiresIn = humanize.RelTime(expiry, now, "ago", "from now")
			}
		}
		switch {
		case !st.Configured:
			res.NextSteps = append(res.NextSteps, fmt.Sprintf("Set client_id under [%s] in config.toml", src))
		case !st.SignedIn:
			res.NextSteps = append(res.NextSteps, fmt.Sprintf("Run `unical login %s`", src))
		}
		if st.SignedIn {
			res.Ready = true
		}
		res.Providers = append(res.Providers, st)
	}
	return res
}

func printStatusPlain(out io.Writer, res statusResult) error {
	_, _ = fmt.Fprintf(out, "ready=%t account=%s profile=%s tz=%s output_mode=%s\n", res.Ready, res.Account, res.Profile, res.TZ, res.OutputMode)
	for _, p := range res.Providers {
		state := "signed out"
		if p.SignedIn {
			state = "signed in"
			if p.ExpiresIn != "" {
				state += ", token expires " + p.ExpiresIn
			}
		}
		if !p.Configured {
			state += ", not configured"
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", p.Source, state)
	}
	for _, step := range res.NextSteps {
		_, _ = fmt.Fprintf(out, "next: %s\n", step)
	}
	return nil
}
