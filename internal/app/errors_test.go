package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/provider"
)

func TestExitCode(t *testing.T) {
	if code := ExitCode(nil); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if code := ExitCode(errors.New("x")); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
	if code := ExitCode(Wrap(7, errors.New("x"))); code != 7 {
		t.Fatalf("expected 7, got %d", code)
	}
}

func TestFailProviderExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{aggregate.ErrNoProviders, exitAuth},
		{fmt.Errorf("outlook: %w", provider.ErrNotSignedIn), exitAuth},
		{fmt.Errorf("%w: google client_id is not configured", errProviderConfig), exitUsage},
		{fmt.Errorf("google: %w", provider.ErrNotFound), exitNotFound},
		{errors.New("all providers failed"), exitProvider},
	}
	for _, tc := range cases {
		var errOut bytes.Buffer
		s := &session{
			printer: output.Printer{Mode: output.ModeJSON, Err: &errOut},
			logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		}
		err := failProvider(s, tc.err)
		if code := ExitCode(err); code != tc.want {
			t.Fatalf("failProvider(%v) exit = %d, want %d", tc.err, code, tc.want)
		}
		var appErr AppError
		if !errors.As(err, &appErr) || !appErr.Printed || errOut.Len() == 0 {
			t.Fatalf("expected a printed error for %v", tc.err)
		}
	}
}
