/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/suparena/docstore/errors"
)

// IO bundles the streams a command reads from and writes to.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewIO creates a new IO instance.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// PrintJSON writes v to stdout as a single line of JSON.
func (o *IO) PrintJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	o.Println(string(data))
	return nil
}

// PrintError reports err on stderr as "kind: message". Errors that carry no
// store kind are reported as "error: message".
func (o *IO) PrintError(err error) {
	label := "error"
	if kind := errors.KindOf(err); kind != errors.KindUnknown {
		label = kind.String()
	}
	_, _ = fmt.Fprintf(o.errOut, "%s: %v\n", label, err)
}
