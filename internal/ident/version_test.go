package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_Order(t *testing.T) {
	assert.True(t, V(1, 2, 3).Less(V(1, 2, 4)))
	assert.True(t, V(1, 2, 3).Less(V(1, 3, 0)))
	assert.True(t, V(1, 9, 9).Less(V(2, 0, 0)))
	assert.Equal(t, 0, V(1, 2, 3).Compare(V(1, 2, 3)))
	assert.Equal(t, 1, V(2, 0, 0).Compare(V(1, 99, 99)))
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("v1.20.3")
	require.NoError(t, err)
	assert.Equal(t, V(1, 20, 3), v)
	assert.Equal(t, "1.20.3", v.String())

	for _, bad := range []string{"", "1.2", "1.2.3.4", "a.b.c", "-1.0.0"} {
		_, err := ParseVersion(bad)
		assert.ErrorIs(t, err, ErrInvalidVersion, "input %q", bad)
	}
}

func TestVersionRange_Contains(t *testing.T) {
	tests := []struct {
		name  string
		r     VersionRange
		in    []Version
		notIn []Version
	}{
		{"any", AnyVersion(), []Version{V(0, 0, 0), V(9, 9, 9)}, nil},
		{"exactly", Exactly(V(1, 2, 3)), []Version{V(1, 2, 3)}, []Version{V(1, 2, 2), V(1, 2, 4)}},
		{"at least", AtLeast(V(1, 0, 0)), []Version{V(1, 0, 0), V(5, 0, 0)}, []Version{V(0, 9, 9)}},
		{"below", Below(V(2, 0, 0)), []Version{V(1, 9, 9)}, []Version{V(2, 0, 0)}},
		{"between", Between(V(1, 0, 0), V(1, 5, 0)), []Version{V(1, 0, 0), V(1, 4, 9)}, []Version{V(1, 5, 0), V(0, 1, 0)}},
		{"compatible", Compatible(V(1, 2, 0)), []Version{V(1, 2, 0), V(1, 9, 0)}, []Version{V(1, 1, 9), V(2, 0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.in {
				assert.True(t, tt.r.Contains(v), "%s should contain %s", tt.r, v)
			}
			for _, v := range tt.notIn {
				assert.False(t, tt.r.Contains(v), "%s should not contain %s", tt.r, v)
			}
		})
	}
}

func TestParseVersionRange(t *testing.T) {
	tests := map[string]VersionRange{
		"*":              AnyVersion(),
		"1.2.3":          Exactly(V(1, 2, 3)),
		"=1.2.3":         Exactly(V(1, 2, 3)),
		"^1.2.3":         Compatible(V(1, 2, 3)),
		">=1.0.0":        AtLeast(V(1, 0, 0)),
		"<2.0.0":         Below(V(2, 0, 0)),
		">=1.0.0 <2.0.0": Between(V(1, 0, 0), V(2, 0, 0)),
	}
	for in, want := range tests {
		got, err := ParseVersionRange(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVersionRange(">=2.0.0 <1.0.0")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseVersionRange(">=x")
	assert.ErrorIs(t, err, ErrInvalidRange)

	for _, mixed := range []string{"<1.5.0 ^1.2.3", "^1.2.3 >=1.0.0", ">=1.0.0 =1.2.3", "1.2.3 <2.0.0", "^1.0.0 ^1.2.0"} {
		_, err := ParseVersionRange(mixed)
		assert.ErrorIs(t, err, ErrInvalidRange, "input %q", mixed)
	}
}
