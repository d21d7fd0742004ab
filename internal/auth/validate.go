package auth

import (
	"net/mail"
	"strings"

	"github.com/dukerupert/stremify/internal/apperr"
)

const (
	minPasswordLen = 8
	otpLen         = 6
)

type validator struct {
	fields []apperr.FieldError
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.fields = append(v.fields, apperr.FieldError{Field: field, Message: message})
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return apperr.Validation(v.fields...)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func validOTP(code string) bool {
	if len(code) != otpLen {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateSignUp(name, email, password string) error {
	var v validator
	v.check(strings.TrimSpace(name) != "", "name", "username is required")
	v.check(validEmail(email), "email", "Invalid email format. Please provide a valid email address")
	v.check(len(password) >= minPasswordLen, "password", "Password must be at least 8 characters long")
	return v.err()
}

func validateLogin(email, password string) error {
	var v validator
	v.check(validEmail(email), "email", "Invalid email format. Please provide a valid email address")
	v.check(password != "", "password", "password is required")
	return v.err()
}

func validateVerify(in VerifyInput) error {
	var v validator
	if in.UserID == "" {
		v.check(validEmail(in.Email), "email", "Invalid email format. Please provide a valid email address")
	}
	v.check(validOTP(in.Code), "otp", "OTP must be 6 digits")
	return v.err()
}

func validateResend(email string) error {
	var v validator
	v.check(validEmail(email), "email", "Invalid email format. Please provide a valid email address")
	return v.err()
}
