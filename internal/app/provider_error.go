package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// providerCallError marks a provider call that ended because the command
// context expired or was canceled.
type providerCallError struct {
	Phase    string
	Kind     string
	Deadline *time.Time
	Err      error
}

func (e *providerCallError) Error() string {
	if e == nil {
		return "provider error"
	}
	switch e.Kind {
	case "timeout":
		if e.Deadline != nil {
			return fmt.Sprintf("%s timed out after deadline %s: %v", e.Phase, e.Deadline.Format(time.RFC3339), e.Err)
		}
		return fmt.Sprintf("%s timed out: %v", e.Phase, e.Err)
	case "canceled":
		return fmt.Sprintf("%s canceled: %v", e.Phase, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *providerCallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func annotateProviderError(ctx context.Context, phase string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		var dl *time.Time
		if deadline, ok := ctx.Deadline(); ok {
			deadline = deadline.UTC()
			dl = &deadline
		}
		return &providerCallError{Phase: phase, Kind: "timeout", Deadline: dl, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &providerCallError{Phase: phase, Kind: "canceled", Err: err}
	}
	return err
}

func providerErrorMeta(err error) map[string]any {
	var pe *providerCallError
	if !errors.As(err, &pe) || pe == nil {
		return nil
	}
	meta := map[string]any{
		"phase": pe.Phase,
		"kind":  pe.Kind,
	}
	if pe.Deadline != nil {
		meta["deadline"] = pe.Deadline.Format(time.RFC3339)
	}
	return meta
}
