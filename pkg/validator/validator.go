// Package validator wraps go-playground/validator with the project's tag name
// ("binding", as on the request DTOs) and German failure messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "kgv/backend/pkg/errors"
)

// Validator 请求校验器
type Validator struct {
	v        *validator.Validate
	messages map[string]string
}

// New creates a validator reading `binding` tags and naming fields by their
// json name.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v, messages: map[string]string{}}
}

// RegisterRule adds a string field rule under tag with its failure message.
func (v *Validator) RegisterRule(tag, message string, fn func(string) bool) {
	_ = v.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	v.messages[tag] = message
}

// StructRule checks cross-field constraints; report marks a failed field
// with a tag whose message was registered through Messages.
type StructRule func(s any, report func(field, tag string))

// RegisterStructRule attaches a cross-field rule to the given types.
func (v *Validator) RegisterStructRule(rule StructRule, types ...any) {
	v.v.RegisterStructValidation(func(sl validator.StructLevel) {
		rule(sl.Current().Interface(), func(field, tag string) {
			sl.ReportError(nil, field, field, tag, "")
		})
	}, types...)
}

// Messages registers failure messages for custom tags.
func (v *Validator) Messages(m map[string]string) {
	for tag, msg := range m {
		v.messages[tag] = msg
	}
}

// Struct validates s. Failures become a single Validation error listing every
// field message.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("Ungültige Anfrage: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, v.message(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func (v *Validator) message(fe validator.FieldError) string {
	field := fe.Field()
	if msg, ok := v.messages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required", "required_without", "required_if":
		return fmt.Sprintf("%s ist erforderlich", field)
	case "max":
		return fmt.Sprintf("%s darf höchstens %s lang sein", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s muss mindestens %s lang sein", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s muss mindestens %s sein", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s darf höchstens %s sein", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s muss einer der Werte [%s] sein", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s muss genau %s Zeichen lang sein", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s darf nur Ziffern enthalten", field)
	case "email":
		return fmt.Sprintf("%s ist keine gültige E-Mail-Adresse", field)
	case "uuid":
		return fmt.Sprintf("%s ist keine gültige ID", field)
	}
	return fmt.Sprintf("%s ist ungültig (%s)", field, fe.Tag())
}
