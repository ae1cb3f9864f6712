package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("Name fehlt"), KindValidation},
		{"not found", NotFound("Bezirk %s nicht gefunden", "M"), KindNotFound},
		{"conflict", Conflict("Parzelle belegt"), KindConflict},
		{"wrapped conflict", fmt.Errorf("assign: %w", Conflict("x")), KindConflict},
		{"plain error", errors.New("boom"), KindUnexpected},
		{"context", context.Canceled, KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: relation \"plots\" does not exist")
	err := Internal(cause)

	require.NotNil(t, err)
	assert.Equal(t, KindUnexpected, err.Kind)
	assert.Equal(t, ErrUnexpected.Message, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestInternal_KeepsCategorisedErrors(t *testing.T) {
	conflict := Conflict("Nummer existiert bereits")
	assert.Same(t, conflict, Internal(fmt.Errorf("flush: %w", conflict)))
	assert.Nil(t, Internal(nil))
}

func TestWrap_KeepsSentinelIdentity(t *testing.T) {
	sentinel := NotFound("Parzelle nicht gefunden")
	cause := errors.New("record not found")

	err := Wrap(sentinel, cause)

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "Parzelle nicht gefunden", MessageOf(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "unexpected", KindUnexpected.String())
}
