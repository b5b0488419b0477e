package ux

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm writes a yes/no question to out and reads one line from in.
// Empty input takes the default; only "y" or "yes" (any case) counts
// as assent. A line cut short by EOF is still parsed, so a bare "y"
// piped without a trailing newline works.
func Confirm(in io.Reader, out io.Writer, message string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Fprintf(out, "%s (%s): ", message, hint)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}
