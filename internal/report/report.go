// Package report prints the outcome of a booking run.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	bot "github.com/zegheim/nuffield-book-classes"
)

// Output formats.
const (
	Text = "text"
	JSON = "json"
	YAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{Text, JSON, YAML}

// Valid reports whether format is a known output format.
func Valid(format string) bool {
	switch format {
	case Text, JSON, YAML:
		return true
	}
	return false
}

// Success writes a confirmed booking in the given format.
func Success(w io.Writer, format string, b *bot.Booking) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return err
		}
		return enc.Close()
	case Text:
		_, err := fmt.Fprintf(w, "Booked %s lane at %s on %s for %s (event %d).\n",
			b.Lane, b.Start, b.Date, b.Email, b.EventID)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

// Failure writes a failed run. Failures are always plain text.
func Failure(w io.Writer, err error) {
	fmt.Fprintf(w, "Booking failed: %v\n", err)
}
