package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "kgv/backend/pkg/errors"
)

type sample struct {
	Code   string  `json:"code"   binding:"required,code"`
	Area   float64 `json:"area"   binding:"gte=0"`
	Status string  `json:"status" binding:"omitempty,oneof=active inactive"`
	A      string  `json:"a"`
	B      string  `json:"b"`
}

func newSampleValidator() *Validator {
	v := New()
	v.RegisterRule("code", "Code ist ungültig", func(s string) bool { return len(s) <= 3 })
	v.Messages(map[string]string{"a_or_b": "Genau eines von a oder b ist erforderlich"})
	v.RegisterStructRule(func(s any, report func(field, tag string)) {
		in := s.(sample)
		if (in.A == "") == (in.B == "") {
			report("a", "a_or_b")
		}
	}, sample{})
	return v
}

func TestStruct_Valid(t *testing.T) {
	v := newSampleValidator()
	assert.NoError(t, v.Struct(sample{Code: "M", Status: "active", A: "x"}))
	assert.NoError(t, v.Struct(&sample{Code: "M", B: "y"}))
}

func TestStruct_FieldMessages(t *testing.T) {
	v := newSampleValidator()
	err := v.Struct(sample{Code: "ABCD", Area: -1, Status: "gone", A: "x"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	msg := apperr.MessageOf(err)
	assert.Contains(t, msg, "Code ist ungültig")
	assert.Contains(t, msg, "area muss mindestens 0 sein")
	assert.Contains(t, msg, "status muss einer der Werte [active inactive] sein")
	assert.Equal(t, 3, len(strings.Split(msg, "; ")))
}

func TestStruct_RequiredAndStructRule(t *testing.T) {
	v := newSampleValidator()
	err := v.Struct(sample{A: "x", B: "y"})
	require.Error(t, err)
	msg := apperr.MessageOf(err)
	assert.Contains(t, msg, "code ist erforderlich")
	assert.Contains(t, msg, "Genau eines von a oder b ist erforderlich")
}
