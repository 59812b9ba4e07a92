// Package service holds the business rules of the trip planner and the
// time tracker. Every exported method validates its input, checks the
// caller's rights and commits its changes in a single transaction.
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"traveltogether/internal/domain"
)

// Clock returns the current time; tests replace it
type Clock func() time.Time

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// check validates v and turns the first failing field into a ValidationError.
// messages maps struct field names, or "Field.tag" for one rule, to the text
// shown to the user.
func check(v *validator.Validate, input any, messages map[string]string) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	field := verrs[0].Field()
	if msg, ok := messages[field+"."+verrs[0].Tag()]; ok {
		return domain.Validation(msg)
	}
	if msg, ok := messages[field]; ok {
		return domain.Validation(msg)
	}
	return domain.Validation(fmt.Sprintf("%s is invalid.", field))
}

// notFound maps gorm's missing-row error onto a NotFoundError with msg
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(msg)
	}
	return err
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
	if err != nil {
		return nil, domain.Validation(fmt.Sprintf("%s must be a date in the form YYYY-MM-DD.", field))
	}
	return &d, nil
}
