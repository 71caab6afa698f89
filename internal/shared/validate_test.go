package shared

import (
	"errors"
	"testing"
)

func TestValidator(t *testing.T) {
	type body struct {
		Code        string `json:"code" validate:"required"`
		RedirectURI string `json:"redirect_uri" validate:"required,url"`
		Kind        string `json:"type" validate:"omitempty,oneof=playlist song album"`
	}

	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		if err := v.Validate(body{Code: "abc", RedirectURI: "http://localhost/cb"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("reports json names", func(t *testing.T) {
		err := v.Validate(body{RedirectURI: "nope", Kind: "artist"})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %T %v", err, err)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Error("expected ErrInvalidInput in chain")
		}

		want := map[string]string{
			"code":         "is required",
			"redirect_uri": "must be a valid URL",
			"type":         "must be one of: playlist song album",
		}
		for field, msg := range want {
			if verr.Fields[field] != msg {
				t.Errorf("field %s = %q, want %q", field, verr.Fields[field], msg)
			}
		}
	})
}
