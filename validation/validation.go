/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation runs go-playground/validator rules declared on entity
// struct tags and converts failures into errs.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/opencollective/ledger/errs"
)

var (
	once     sync.Once
	validate *validator.Validate
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validator returns the shared validator instance with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return fl.Field().String() == "" || slugRegex.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v and returns an *errs.ValidationError naming entity when
// any rule fails.
func Struct(entity string, v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &errs.ValidationError{Entity: entity}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, errs.FieldError{Field: fe.Field(), Error: message(fe)})
	}
	return out
}

// Var validates a single value against tag.
func Var(value interface{}, tag string) bool {
	return Validator().Var(value, tag) == nil
}

// IsEmail reports whether s is a well-formed e-mail address.
func IsEmail(s string) bool { return Var(s, "required,email") }

// IsURL reports whether s is an absolute URL.
func IsURL(s string) bool { return Var(s, "required,url") }

// IsSlug reports whether s is lowercase alphanumerics separated by dashes.
func IsSlug(s string) bool { return slugRegex.MatchString(s) }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "iso4217":
		return "must be a valid ISO 4217 currency code"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "slug":
		return "must only contain lowercase alphanumeric characters and dashes"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s:%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
