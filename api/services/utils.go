package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CMSgov/dpc-portal/models"
	"github.com/go-playground/validator/v10"
)

type HTTPError struct {
	Message string
	Status  int
}

func (e *HTTPError) Error() string {
	return e.Message
}

// UserError is an error whose message can be shown to the user as is.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Is matches user errors by message so wrapped copies compare equal to the sentinels.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && t.Message == e.Message
}

func userError(sentinel *UserError, err error) *UserError {
	return &UserError{Message: sentinel.Message, Err: err}
}

// UserMessage returns the message to display for err, or fallback when err is not user facing.
func UserMessage(err error, fallback string) string {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr.Message
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message
	}
	return fallback
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("npi", func(fl validator.FieldLevel) bool {
		return ValidNPI(fl.Field().String())
	})
	return v
}

// ValidNPI checks a National Provider Identifier: ten digits whose last digit is the Luhn
// check digit computed over the 80840 card issuer prefix and the first nine digits.
func ValidNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	for _, r := range npi {
		if r < '0' || r > '9' {
			return false
		}
	}

	digits := "80840" + npi
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func WriteResponse(w http.ResponseWriter, statusCode int, response interface{}, location ...string) {

	w.Header().Set("Content-Type", "application/json")

	// Credential material must never be cached by intermediaries
	w.Header().Set("Cache-Control", "no-store")

	// Conditionally set the Location header if provided
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}

	w.WriteHeader(statusCode)

	if response != nil {
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// HandleErrResponse writes a JSON error. Only user facing messages are exposed; anything
// else is reported by its status text.
func HandleErrResponse(w http.ResponseWriter, statusCode int, err error) {
	WriteResponse(w, statusCode, models.Response{
		Success:      0,
		ErrorDetails: UserMessage(err, http.StatusText(statusCode)),
	})
}
