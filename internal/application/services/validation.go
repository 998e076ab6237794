package services

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"

	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so messages match the request fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and converts failures to a VALIDATION AppError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error())
	}
	return apperrors.NewValidationError(validationMessage(verrs))
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// normalizePhone parses number in region and returns it in E.164 form
func normalizePhone(number, region string) (string, error) {
	p, err := libphonenumber.Parse(strings.TrimSpace(number), region)
	if err != nil {
		return "", apperrors.NewValidationError("Invalid phone number")
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", apperrors.NewValidationError("Invalid phone number")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
