package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/campusgate/access-core/internal/core/domain"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator with the access-core tags registered:
// permkey, sysrole and substatus.
func NewValidator() *echoValidator {
	v := validator.New()
	_ = v.RegisterValidation("permkey", func(fl validator.FieldLevel) bool {
		_, err := domain.ParsePermissionKey(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("sysrole", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSystemRole(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("substatus", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSubscriptionStatus(fl.Field().String())
		return err == nil
	})
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface. Failures wrap
// domain.ErrValidation.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, strings.ToLower(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "permkey":
		return field + " must be an Action:Resource permission"
	case "sysrole":
		return field + " must be a known system role"
	case "substatus":
		return field + " must be a known subscription status"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
