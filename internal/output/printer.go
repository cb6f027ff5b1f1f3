package output

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"

	"github.com/agis/unical/internal/contract"
)

type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeJSON  Mode = "json"
	ModeJSONL Mode = "jsonl"
	ModePlain Mode = "plain"
)

type Printer struct {
	Mode          Mode
	Command       string
	Fields        []string
	Quiet         bool
	NoColor       bool
	SchemaVersion string
	Out           io.Writer
	Err           io.Writer
	now           func() time.Time
}

// EffectiveSuccessMode resolves ModeAuto: plain on a terminal, JSON otherwise.
func (p Printer) EffectiveSuccessMode() Mode {
	switch p.Mode {
	case ModeJSON, ModeJSONL, ModePlain:
		return p.Mode
	}
	if IsTerminal(p.out()) {
		return ModePlain
	}
	return ModeJSON
}

func (p Printer) Success(data any, meta map[string]any, warnings []string) error {
	if warnings == nil {
		warnings = []string{}
	}
	switch p.EffectiveSuccessMode() {
	case ModeJSON:
		env := contract.SuccessEnvelope{
			SchemaVersion: p.schemaVersion(),
			Command:       p.Command,
			GeneratedAt:   p.clock().UTC(),
			Data:          data,
			Meta:          meta,
			Warnings:      warnings,
		}
		enc := json.NewEncoder(p.out())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case ModeJSONL:
		v := reflect.ValueOf(data)
		if v.IsValid() && v.Kind() == reflect.Slice {
			enc := json.NewEncoder(p.out())
			for i := 0; i < v.Len(); i++ {
				if err := enc.Encode(v.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return json.NewEncoder(p.out()).Encode(data)
	default:
		p.Warn(warnings)
		return p.printPlain(data)
	}
}

// Warn writes warnings to stderr in plain mode. JSON modes carry them in
// the envelope instead.
func (p Printer) Warn(warnings []string) {
	for _, w := range warnings {
		_, _ = fmt.Fprintf(p.errOut(), "%s %s\n", p.paint("33", "warning:"), w)
	}
}

func (p Printer) Error(code contract.ErrorCode, message, hint string) error {
	if p.Mode == ModeJSON || p.Mode == ModeJSONL {
		env := contract.ErrorEnvelope{
			SchemaVersion: p.schemaVersion(),
			Error:         contract.ErrorBody{Code: code, Message: message, Hint: hint},
		}
		enc := json.NewEncoder(p.errOut())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if hint != "" {
		_, _ = fmt.Fprintf(p.errOut(), "%s %s\nhint: %s\n", p.paint("31", "error:"), message, hint)
		return nil
	}
	_, _ = fmt.Fprintf(p.errOut(), "%s %s\n", p.paint("31", "error:"), message)
	return nil
}

// Plainf writes a formatted line to stdout unless Quiet is set.
func (p Printer) Plainf(format string, args ...any) {
	if p.Quiet {
		return
	}
	_, _ = fmt.Fprintf(p.out(), format, args...)
}

func (p Printer) schemaVersion() string {
	if p.SchemaVersion == "" {
		return contract.SchemaVersion
	}
	return p.SchemaVersion
}

func (p Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p Printer) errOut() io.Writer {
	if p.Err == nil {
		return os.Stderr
	}
	return p.Err
}

func (p Printer) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p Printer) paint(code, s string) string {
	if p.NoColor || !IsTerminal(p.errOut()) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p Printer) printPlain(data any) error {
	v := reflect.ValueOf(data)
	if !v.IsValid() || (v.Kind() == reflect.Slice && v.Len() == 0) {
		if !p.Quiet {
			_, _ = fmt.Fprintln(p.out(), "no results")
		}
		return nil
	}
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if _, err := fmt.Fprintln(p.out(), flatten(v.Index(i).Interface(), p.Fields)); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(p.out(), flatten(data, p.Fields))
	return err
}

func flatten(v any, fields []string) string {
	if len(fields) == 0 {
		b, _ := json.Marshal(v)
		return string(b)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		b, _ := json.Marshal(v)
		return string(b)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		fv := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, strings.ReplaceAll(f, "_", "")) || strings.EqualFold(name, f)
		})
		if !fv.IsValid() {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, plainValue(fv.Interface()))
	}
	return strings.Join(parts, "\t")
}

func plainValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
