package field

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lvillar/docfields/docerr"
)

// Validate checks the rule set itself: the pattern compiles and the bounds
// are ordered.
func (r Rules) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Pattern, validation.By(compiles)),
		validation.Field(&r.MinLength, validation.Min(0)),
		validation.Field(&r.MaxLength, validation.Min(0), validation.By(func(any) error {
			if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
				return errors.New("must not be less than minLength")
			}
			return nil
		})),
		validation.Field(&r.Max, validation.By(func(any) error {
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return errors.New("must not be less than min")
			}
			return nil
		})),
	)
}

func compiles(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := regexp.Compile(s); err != nil {
		return errors.New("must be a valid regular expression")
	}
	return nil
}

// placement holds the store-level limits a field is checked against. A nil
// vocabulary accepts any merge token.
type placement struct {
	minWidth, minHeight float64
	vocabulary          map[string]bool
}

// check validates everything about f that does not depend on the owning
// document. The result wraps docerr.ErrInvalidField and the ozzo errors.
func (pl placement) check(f Field) error {
	types := make([]any, 0, len(Types()))
	for _, t := range Types() {
		types = append(types, t)
	}

	errs := validation.Errors{
		"type":  validation.Validate(f.Type, validation.Required, validation.In(types...)),
		"label": validation.Validate(f.Label, validation.Required, validation.RuneLength(1, MaxLabelLength)),
		"x":     validation.Validate(f.Position.X, validation.Min(0.0)),
		"y":     validation.Validate(f.Position.Y, validation.Min(0.0)),
		"width": validation.Validate(f.Size.Width,
			validation.Required, validation.Min(pl.minWidth)),
		"height": validation.Validate(f.Size.Height,
			validation.Required, validation.Min(pl.minHeight)),
		"options": validation.Validate(f.Options,
			validation.When(f.Type != TypeDropdown, validation.Empty.Error("only dropdown fields have options")),
			validation.When(f.Type == TypeDropdown && f.Required, validation.Required.Error("a required dropdown needs options"))),
		"mergeField": validation.Validate(f.MergeField, validation.By(pl.inVocabulary)),
		"validation": validation.Validate(f.Validation),
	}
	if err := errs.Filter(); err != nil {
		return fmt.Errorf("%w: %w", docerr.ErrInvalidField, err)
	}
	return nil
}

func (pl placement) inVocabulary(v any) error {
	name, _ := v.(string)
	if name == "" || pl.vocabulary == nil || pl.vocabulary[name] {
		return nil
	}
	return fmt.Errorf("unknown merge token %q", name)
}

// ValidateValues checks values, keyed by field id, against fields. Every
// field is checked and every problem is returned: a required field without a
// value yields a *docerr.MissingRequiredFieldError, a value that breaks the
// field's rules a *docerr.FieldError. A required dropdown without options can
// never be satisfied and is always reported missing.
func ValidateValues(fields []Field, values map[string]string) []error {
	var errs []error
	for _, f := range fields {
		v := strings.TrimSpace(values[f.ID])

		if f.Type == TypeDropdown && f.Required && len(f.Options) == 0 {
			errs = append(errs, &docerr.MissingRequiredFieldError{FieldID: f.ID, Label: f.Label})
			continue
		}
		if v == "" {
			if f.Required {
				errs = append(errs, &docerr.MissingRequiredFieldError{FieldID: f.ID, Label: f.Label})
			}
			continue
		}
		if err := checkValue(f, v); err != nil {
			errs = append(errs, &docerr.FieldError{FieldID: f.ID, Label: f.Label, Err: err})
		}
	}
	return errs
}

func checkValue(f Field, v string) error {
	var r Rules
	if f.Validation != nil {
		r = *f.Validation
	}

	switch f.Type {
	case TypeText, TypeTextarea:
		n := utf8.RuneCountInString(v)
		if r.MinLength != nil && n < *r.MinLength {
			return fmt.Errorf("must be at least %d characters", *r.MinLength)
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			return fmt.Errorf("must be at most %d characters", *r.MaxLength)
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}
			if !re.MatchString(v) {
				return fmt.Errorf("does not match pattern %q", r.Pattern)
			}
		}

	case TypeNumber:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		if r.Min != nil && n < *r.Min {
			return fmt.Errorf("must be at least %v", *r.Min)
		}
		if r.Max != nil && n > *r.Max {
			return fmt.Errorf("must be at most %v", *r.Max)
		}

	case TypeDate:
		if _, err := time.Parse(DateLayout, v); err != nil {
			return fmt.Errorf("%q is not a date in the form YYYY-MM-DD", v)
		}

	case TypeDropdown:
		if !slices.Contains(f.Options, v) {
			return fmt.Errorf("%q is not one of the options", v)
		}
	}
	return nil
}
