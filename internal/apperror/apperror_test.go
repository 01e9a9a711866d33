package apperror

import (
	"errors"
	"testing"
)

// Table-driven: one row per constructor/sentinel pairing.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("snippet", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "This field is required."),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Invalid wraps ErrValidation",
			err:       Invalid(map[string]string{"username": "required", "password": "required"}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "newuser"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("permission denied"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "HighlightFailed wraps ErrHighlight",
			err:       HighlightFailed(errors.New("lexer exploded")),
			target:    ErrHighlight,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("snippet", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Forbidden does NOT match ErrNotFound",
			err:       Forbidden("permission denied"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("snippet", "abc123"),
			wantMessage: "snippet not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("code", "This field is required."),
			wantMessage: "This field is required.",
		},
		{
			name:        "Invalid with one field uses that field's message",
			err:         Invalid(map[string]string{"style": "not a valid choice"}),
			wantMessage: "not a valid choice",
		},
		{
			name:        "Invalid with several fields lists them sorted",
			err:         Invalid(map[string]string{"username": "x", "password": "y"}),
			wantMessage: "invalid fields: password, username",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("user", "newuser"),
			wantMessage: "user conflict with id newuser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("snippet", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestHighlightFailed_KeepsCause(t *testing.T) {
	cause := errors.New("no lexer")
	err := HighlightFailed(cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "Enter a valid email address.")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if got := err.Fields["email"]; got != "Enter a valid email address." {
		t.Errorf("Fields[email] = %q", got)
	}
}

func TestMalformed(t *testing.T) {
	err := Malformed("JSON parse error")

	if !errors.Is(err, ErrValidation) {
		t.Errorf("errors.Is(err, ErrValidation) = false, want true")
	}
	if err.Fields != nil {
		t.Errorf("Fields = %v, want nil", err.Fields)
	}
}
