package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Formatter renders command output in one of the supported formats.
// Status snapshots, decision logs, and plan summaries all go through a
// Formatter so every command honors --format the same way.
type Formatter interface {
	// Format writes the given data to the output writer
	Format(data interface{}) error
}

// FormatterOptions configures rendering
type FormatterOptions struct {
	// Writer is where output is written (defaults to os.Stdout)
	Writer io.Writer
	// NoColor strips ANSI styling from text output
	NoColor bool
	// Compact drops indentation from JSON and YAML output
	Compact bool
}

type mode int

const (
	modeText mode = iota
	modeJSON
	modeYAML
)

// formatter is the one implementation behind every format
type formatter struct {
	mode    mode
	w       io.Writer
	noColor bool
	compact bool
}

// NewFormatter creates a formatter for "text", "json", or "yaml".
// An empty format means text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	f := &formatter{w: os.Stdout}
	if opts != nil {
		if opts.Writer != nil {
			f.w = opts.Writer
		}
		f.noColor = opts.NoColor
		f.compact = opts.Compact
	}

	switch format {
	case "text", "":
		f.mode = modeText
	case "json":
		f.mode = modeJSON
	case "yaml":
		f.mode = modeYAML
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
	return f, nil
}

// Format writes data to the configured writer
func (f *formatter) Format(data interface{}) error {
	switch f.mode {
	case modeJSON:
		enc := json.NewEncoder(f.w)
		if !f.compact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(data)

	case modeYAML:
		enc := yaml.NewEncoder(f.w)
		if !f.compact {
			enc.SetIndent(2)
		}
		defer enc.Close()
		return enc.Encode(data)

	default:
		return f.text(data)
	}
}

// text accepts only pre-rendered strings and Stringers. Commands that
// support text output build the string themselves (report.RenderText
// and friends) and hand the result here.
func (f *formatter) text(data interface{}) error {
	var s string
	switch v := data.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		return fmt.Errorf("text formatter requires a string or a fmt.Stringer; use --format json for structured data")
	}

	if f.noColor {
		s = stripANSI(s)
	}
	_, err := fmt.Fprintln(f.w, s)
	return err
}

// ansiPattern matches the SGR escape sequences lipgloss emits
var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
