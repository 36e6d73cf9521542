package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/thread"
)

func validSpec(name, iface string) *InterfaceSpec {
	return &InterfaceSpec{
		Name:      name,
		Interface: ident.MustInterface(iface),
		Purpose:   "Does one thing",
		Behavior:  BehaviorEcho,
		Type:      thread.Parallel(),
	}
}

func TestValidateValid(t *testing.T) {
	errs := Validate(validSpec("Echo", "svc/echo@1.0.0"))
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateMissingPurpose(t *testing.T) {
	spec := validSpec("Echo", "svc/echo@1.0.0")
	spec.Purpose = "   "

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrPurposeEmpty, errs[0].Code)
	assert.Contains(t, errs[0].Message, "purpose")
}

func TestValidateUnknownBehavior(t *testing.T) {
	spec := validSpec("Echo", "svc/echo@1.0.0")
	spec.Behavior = "juggle"

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownBehavior, errs[0].Code)
	assert.Contains(t, errs[0].Message, "juggle")
}

func TestValidateAccepts(t *testing.T) {
	spec := validSpec("Echo", "svc/echo@1.0.0")
	spec.Accepts = []ident.Interface{
		ident.MustInterface("svc/echo@1.0.0"),
		ident.MustInterface("svc/ping@1.0.0"),
		ident.MustInterface("svc/ping@1.0.0"),
	}

	errs := Validate(spec)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrSelfAccept, errs[0].Code)
	assert.Equal(t, "accepts[0]", errs[0].Field)
	assert.Equal(t, ErrDuplicateAccept, errs[1].Code)
	assert.Equal(t, "accepts[2]", errs[1].Field)
}

func TestValidateThreadType(t *testing.T) {
	spec := validSpec("Cache", "svc/cache@1.0.0")
	spec.Type = thread.Type{Kind: thread.KindCachingTask, Probability: 0.5}

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidThreadType, errs[0].Code)
}

func TestValidateCollectsAll(t *testing.T) {
	spec := validSpec("Bad", "svc/bad@1.0.0")
	spec.Purpose = ""
	spec.Behavior = "nope"

	errs := Validate(spec)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrPurposeEmpty, errs[0].Code)
	assert.Equal(t, ErrUnknownBehavior, errs[1].Code)
}

func TestValidateAllDuplicateInterface(t *testing.T) {
	specs := []*InterfaceSpec{
		validSpec("EchoA", "svc/echo@1.0.0"),
		validSpec("EchoB", "svc/echo@1.0.0"),
		validSpec("EchoNext", "svc/echo@2.0.0"),
	}

	errs := ValidateAll(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateInterface, errs[0].Code)
	assert.Equal(t, "EchoB", errs[0].Field)
	assert.Contains(t, errs[0].Message, "EchoA")
}

func TestValidateAllPrefixesField(t *testing.T) {
	spec := validSpec("Echo", "svc/echo@1.0.0")
	spec.Purpose = ""

	errs := ValidateAll([]*InterfaceSpec{spec})
	require.Len(t, errs, 1)
	assert.Equal(t, "Echo.purpose", errs[0].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		want string
	}{
		{
			name: "without line",
			err:  ValidationError{Field: "purpose", Message: "purpose is required", Code: ErrPurposeEmpty},
			want: "[E101] purpose: purpose is required",
		},
		{
			name: "with line",
			err:  ValidationError{Field: "behavior", Message: "unknown", Code: ErrUnknownBehavior, Line: 7},
			want: "[E102] line 7: behavior: unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
