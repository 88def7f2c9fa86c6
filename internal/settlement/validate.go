package settlement

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var legValidator = newLegValidator()

func newLegValidator() *validator.Validate {
	v := validator.New()
	// 报错字段名用 json tag，和接口返回保持一致
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("american_odds", func(fl validator.FieldLevel) bool {
		return ValidAmericanOdds(int(fl.Field().Int()))
	})
	return v
}

// ValidateLeg 校验单腿必填项，返回的 *ValidationError 包含全部不合法字段
func ValidateLeg(leg NormalizedLeg) error {
	err := legValidator.Struct(leg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{LegID: leg.ExternalBetID}
	for _, fe := range fieldErrs {
		ve.Violations = append(ve.Violations, Violation{Field: fe.Field(), Rule: fe.Tag()})
	}
	return ve
}
