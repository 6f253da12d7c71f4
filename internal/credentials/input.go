// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/educagestao/educagestao-tui/internal/security"
)

// validate is shared by every input type in this package.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return security.ParseRole(fl.Field().String()) != security.RoleUnknown
	})
	return v
}

// LoginInput is the login form payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,notblank,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// Validate reports whether both fields are present and plausible.
func (in LoginInput) Validate() error {
	return describe(validate.Struct(in))
}

// NewUser is the payload for adding a user to the local directory.
type NewUser struct {
	Name     string `json:"nome" validate:"required,notblank,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	CPF      string `json:"cpf" validate:"omitempty,max=14"`
	Phone    string `json:"telefone" validate:"omitempty,max=20"`
	Role     string `json:"cargo" validate:"required,role"`
	Password string `json:"senha" validate:"required,min=6,max=72"`
}

// Validate checks the new user payload.
func (nu NewUser) Validate() error {
	return describe(validate.Struct(nu))
}

// describe flattens validator errors into one readable error.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "role":
			msgs = append(msgs, fe.Field()+" must be one of admin, diretor, coordenador, professor, secretaria")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
