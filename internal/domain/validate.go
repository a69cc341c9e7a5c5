package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomerIDPattern matches the human-facing identifier, e.g. 7590-VHVEG.
var CustomerIDPattern = regexp.MustCompile(`\b\d{4}-[A-Z]{5}\b`)

var exactCustomerID = regexp.MustCompile(`^\d{4}-[A-Z]{5}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("customer_id", func(fl validator.FieldLevel) bool {
		return exactCustomerID.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks struct tags and converts the first failure into ErrValidation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed '%s' check (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &ErrValidation{Field: "", Message: err.Error()}
}

// DecodeModelJSON parses raw model output into out and validates it. Models
// often wrap JSON in a ```json fence; that wrapper is stripped first.
func DecodeModelJSON(raw, what string, out any) error {
	text := StripCodeFence(raw)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &ErrParse{What: what, Err: err}
	}
	if err := Validate(out); err != nil {
		return &ErrParse{What: what, Err: err}
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
