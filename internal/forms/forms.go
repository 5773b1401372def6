// Package forms binds submitted form values onto typed structs and validates
// them, keeping the raw input so a page can be re-rendered with its errors.
package forms

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"todoTracker/internal/service"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// NonFieldErrors is the Errors key for messages not tied to one field.
const NonFieldErrors = "__all__"

const dateLayout = "2006-01-02"

var (
	decoder  = form.NewDecoder()
	validate = newValidator()

	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under their form names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Errors maps a field name to its messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Get(field string) []string {
	return e[field]
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

func (e Errors) Any() bool {
	return len(e) > 0
}

// Merge records a service validation error against its field and reports
// whether err was one.
func (e Errors) Merge(err error) bool {
	field, reason, ok := service.FieldError(err)
	if !ok {
		return false
	}
	if field == "" {
		field = NonFieldErrors
	}
	e.Add(field, reason)
	return true
}

// bind decodes values into dst, trims the listed string fields and runs the
// struct's validate tags.
func bind(dst any, values url.Values, errs Errors) {
	if err := decoder.Decode(dst, values); err != nil {
		errs.Add(NonFieldErrors, "The submitted form could not be read.")
		return
	}
	trimStrings(dst)
	check(dst, errs)
}

// check runs the validate tags of dst and translates failures into errs.
func check(dst any, errs Errors) {
	err := validate.Struct(dst)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add(NonFieldErrors, err.Error())
		return
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
			fe.Param(), len([]rune(fmt.Sprint(fe.Value()))))
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	case "datetime":
		return "Enter a valid date."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return fmt.Sprintf("Invalid value (%s).", fe.Tag())
}

// trimStrings strips surrounding whitespace from string fields tagged with
// trim:"true".
func trimStrings(dst any) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("trim") != "true" {
			continue
		}
		f := v.Field(i)
		if f.Kind() == reflect.String {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}

// parseDate reads a validated YYYY-MM-DD value; blank gives nil.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	d, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil
	}
	return &d
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.UTC().Format(dateLayout)
}
