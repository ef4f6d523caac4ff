package prompt

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// errRequired is shown inline while a required prompt is empty.
var errRequired = errors.New("a value is required")

// IsAborted returns true if the error indicates the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for text with a default value.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// InputRequired prompts until the user enters a non-blank value.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: requireValue,
	}
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

func requireValue(input string) error {
	if strings.TrimSpace(input) == "" {
		return errRequired
	}
	return nil
}
