package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// Prompt configures a single-line interactive input
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
}

// runField wraps one field in a single-group form and executes it
func runField(field huh.Field) error {
	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// PromptForString asks for one line of text
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)

	if err := runField(input); err != nil {
		return "", err
	}
	if p.Required && value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}

// PromptForConfirmation asks a yes/no question
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	if err := runField(huh.NewConfirm().Title(message).Value(&confirmed)); err != nil {
		return false, err
	}
	return confirmed, nil
}

// PromptForSelect asks the user to pick one of the options
func PromptForSelect(message string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}

	var selected string
	sel := huh.NewSelect[string]().
		Title(message).
		Options(opts...).
		Value(&selected)

	if err := runField(sel); err != nil {
		return "", err
	}
	return selected, nil
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ciEnvVars are set by the CI systems we recognize; any one of them
// disables prompting.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"BUILDKITE",
}

// ShouldPrompt reports whether interactive prompts may be shown: stdin
// must be a terminal and no CI environment detected.
func ShouldPrompt() bool {
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return false
		}
	}
	return IsInteractive()
}
