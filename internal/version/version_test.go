package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMinimum(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		minimum   string
		want      bool
	}{
		{"newer", "2.5.0", "2.4.0", true},
		{"older", "2.3.0", "2.4.0", false},
		{"equal", "2.4.0", "2.4.0", true},
		{"branch name", "release-feature-x", "2.4.0", true},
		{"master", "master", "5.0.0", true},
		{"double digit minor", "2.10.0", "2.9.0", true},
		{"short form", "3.1", "3.1.0", true},
		{"pre-release below release", "2.5.0-beta1", "2.5.0", false},
		{"pre-release above previous", "2.5.0b1", "2.4.0", true},
		{"build suffix", "3.0.0+build.7", "3.0.0", true},
		{"major below", "1.9.9", "2.0.0", false},
		{"package revision", "3.5.0-1", "3.5.0", true},
		{"package revision below next release", "3.5.0-1", "3.5.1", false},
		{"post release below next minor", "2.5.0.post1", "2.6.0", false},
		{"post release above release", "2.5.0.post1", "2.5.0", true},
		{"later post release", "2.5.0.post2", "2.5.0-1", true},
		{"earlier post release", "2.5.0-1", "2.5.0.post2", false},
		{"release below its post release", "2.5.0", "2.5.0.post1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsMinimum(tt.candidate, tt.minimum)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsMinimumReflexive(t *testing.T) {
	for _, v := range []string{"0.0.1", "1.0.0", "2.4.0", "3.7.2-rc1", "10.20.30", "4.0", "3.5.0-1", "2.5.0.post1"} {
		got, err := IsMinimum(v, v)
		require.NoError(t, err)
		assert.True(t, got, "version %s should meet itself", v)
	}
}

func TestIsMinimumInvalidMinimum(t *testing.T) {
	_, err := IsMinimum("2.5.0", "not-a-version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-version")
}
