package payload

import (
	"context"
	"reflect"
	"strings"

	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Validator cleans up and validates request payloads before they leave the
// client. Validation failures never result in a network call; they surface as
// errcodes.ValidationError with a human-readable message.
type Validator struct {
	conform  *mold.Transformer
	validate *validator.Validate
}

// New initializes a Validator with field names taken from json tags so error
// messages match the wire format users see in payloads.
func New() *Validator {
	conform := modifiers.New()
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{conform, validate}
}

// Validate applies mold modifiers (trim etc), fills defaults, and validates
// the struct. The first failing field is reported.
func (v *Validator) Validate(ctx context.Context, i interface{}) error {
	if err := v.conform.Struct(ctx, i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := v.validate.Struct(i); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok || len(errs) == 0 {
			return errors.WithStack(err)
		}
		return errcodes.ValidationError(formatValidationError(errs[0]))
	}
	return nil
}
