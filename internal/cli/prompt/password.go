package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ErrPasswordMismatch indicates the confirmation did not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a masked password.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// NewPassword prompts for a password that satisfies the account password
// policy, then for its confirmation.
func NewPassword(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validatePassword,
	}
	password, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}

	confirm, err := Password("Confirm " + label)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

func validatePassword(input string) error {
	if len(input) < models.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", models.MinPasswordLength)
	}
	return nil
}
