package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/pkg/validation"
)

func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty message", func(t *testing.T) {
		t.Parallel()
		var errs validation.Errors
		require.Equal(t, "validation failed", errs.Error())
	})

	t.Run("message lists fields", func(t *testing.T) {
		t.Parallel()
		var errs validation.Errors
		errs = errs.Add("name", "is required", "required")
		errs = errs.Add("age", "must be positive", "")

		require.Equal(t, "validation failed: name: is required; age: must be positive", errs.Error())
	})

	t.Run("add accumulates", func(t *testing.T) {
		t.Parallel()
		var errs validation.Errors
		errs = errs.Add("email", "invalid format", "format")

		require.Len(t, errs, 1)
		require.Equal(t, "email", errs[0].Field)
		require.Equal(t, "format", errs[0].Code)
	})

	t.Run("or nil", func(t *testing.T) {
		t.Parallel()
		var errs validation.Errors
		require.NoError(t, errs.OrNil())

		errs = errs.Add("name", "is required", "")
		err := errs.OrNil()
		require.Error(t, err)

		var out validation.Errors
		require.True(t, errors.As(err, &out))
		require.Len(t, out, 1)
	})
}

func TestFunc(t *testing.T) {
	t.Parallel()

	schema := validation.Func(func(payload any) error {
		body, ok := payload.(map[string]any)
		if !ok {
			return validation.Errors{}.Add("body", "must be an object", "type")
		}

		var errs validation.Errors
		if name, _ := body["name"].(string); name == "" {
			errs = errs.Add("name", "is required", "required")
		}
		return errs.OrNil()
	})

	t.Run("valid payload", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, schema.Validate(map[string]any{"name": "anvil"}))
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Parallel()
		err := schema.Validate(map[string]any{})
		require.Error(t, err)

		var errs validation.Errors
		require.True(t, errors.As(err, &errs))
		require.Equal(t, "name", errs[0].Field)
	})
}
