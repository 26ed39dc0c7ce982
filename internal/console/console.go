// Package console prints the human-readable progress output of poolkit
// commands. Structured logs go to slog; this is what the operator reads.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Printer writes sectioned, line-oriented output.
type Printer struct {
	w io.Writer
}

// New creates a Printer on w. A nil w discards output.
func New(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{w: w}
}

// Println writes the operands separated by spaces, like fmt.Println.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

// Printf writes a formatted line. A trailing newline is added if missing.
func (p *Printer) Printf(format string, a ...any) {
	s := fmt.Sprintf(format, a...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	io.WriteString(p.w, s)
}

// Header writes a top-level banner, e.g. "==== Pool Creation Process ====".
func (p *Printer) Header(title string) {
	p.Printf("==== %s ====", title)
}

// Section starts a block preceded by a blank line, e.g. "\n=== FINAL BALANCES ===".
func (p *Printer) Section(title string) {
	p.Printf("\n=== %s ===", title)
}

// Block starts a block in the "==== Title ====" style preceded by a blank line.
func (p *Printer) Block(title string) {
	p.Printf("\n==== %s ====", title)
}

// Field writes "key: value".
func (p *Printer) Field(key string, value any) {
	p.Printf("%s: %v", key, value)
}

// Numbered writes a numbered list.
func (p *Printer) Numbered(items ...string) {
	for i, item := range items {
		p.Printf("%d. %s", i+1, item)
	}
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	p.Printf("%s", data)
	return nil
}

// KV formats a key-value pair with aligned values (20 char key width).
func KV(key string, value any) string {
	return fmt.Sprintf("%-20s %v", key+":", value)
}
