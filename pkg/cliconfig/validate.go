package cliconfig

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("httpurl", isHTTPURL); err != nil {
		panic(fmt.Sprintf("register httpurl validation: %v", err))
	}
	return v
}

// isHTTPURL accepts absolute http and https URLs with a host.
func isHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := defaultValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, c.violation(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func (c *Config) violation(fe validator.FieldError) string {
	key := fe.Field()
	if i := strings.IndexByte(key, '['); i > 0 {
		key = key[:i]
	}
	where := fmt.Sprintf("%s %v", key, fe.Value())
	if src := c.Source(key); src != SourceDefault {
		where += " (from " + src + ")"
	}

	switch fe.Tag() {
	case "httpurl":
		return where + " must be an absolute http(s) URL"
	case "gt":
		return where + " must be greater than " + fe.Param()
	case "gte", "lte":
		return where + " is out of range"
	case "startswith":
		return where + " must start with " + fe.Param()
	case "ne":
		return where + " must not be " + fe.Param()
	case "oneof":
		return where + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "required":
		return key + " is required"
	}
	return where + " is invalid"
}
