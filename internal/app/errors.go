package app

import (
	"errors"
	"fmt"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/auth"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/output"
	"github.com/agis/unical/internal/provider"
)

const (
	exitGeneric  = 1
	exitUsage    = 2
	exitAuth     = 3
	exitNotFound = 4
	exitProvider = 6
)

var errProviderConfig = errors.New("provider not configured")

type AppError struct {
	Code    int
	Err     error
	Printed bool
}

func (e AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e AppError) Unwrap() error { return e.Err }

func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err}
}

func WrapPrinted(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err, Printed: true}
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return exitGeneric
}

func failWithHint(printer output.Printer, code contract.ErrorCode, err error, hint string, exitCode int) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = printer.Error(code, err.Error(), hint)
	return WrapPrinted(exitCode, err)
}

// failProvider maps provider and aggregation errors onto exit codes.
func failProvider(s *session, err error) error {
	if meta := providerErrorMeta(err); meta != nil {
		s.logger.Debug("provider call interrupted", "phase", meta["phase"], "kind", meta["kind"])
	}
	printer := s.printer
	switch {
	case errors.Is(err, aggregate.ErrNoProviders),
		errors.Is(err, provider.ErrNotSignedIn),
		errors.Is(err, auth.ErrNoToken):
		return failWithHint(printer, contract.ErrAuthRequired, err, "Run `unical login google` or `unical login outlook`", exitAuth)
	case errors.Is(err, errProviderConfig):
		return failWithHint(printer, contract.ErrInvalidUsage, err, "Set client_id under [google] or [outlook] in config.toml", exitUsage)
	case errors.Is(err, provider.ErrNotFound):
		return failWithHint(printer, contract.ErrNotFound, err, "Check the ID with `unical events list --fields id,source,summary`", exitNotFound)
	default:
		return failWithHint(printer, contract.ErrProviderUnavailable, err, "Run `unical status` and retry", exitProvider)
	}
}
