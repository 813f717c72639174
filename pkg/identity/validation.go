package identity

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// usernamePattern matches the characters @mentions can address.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

// check runs struct tag validation and converts the first failure into a
// validation domain error.
func check(entity string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return metadata.NewValidationError(entity, "%s failed on '%s'", e.Field(), e.Tag())
	}
	return metadata.NewValidationError(entity, "%v", err)
}
