package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FormatValidationErrors renders validator failures as one readable line per field.
func FormatValidationErrors(err error) []string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	out := make([]string, 0, len(ves))
	for _, fe := range ves {
		msg := fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, fe.Param())
		}
		out = append(out, msg)
	}
	return out
}
