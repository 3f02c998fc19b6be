package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateCommand checks a user intent before it reaches the session.
// Validation failures are returned to the caller and never produce an
// optimistic projection.
func ValidateCommand(cmd Command) error {
	return validate.Struct(cmd)
}
