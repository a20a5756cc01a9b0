package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.3.0", "0.2.9", true},
		{"0.3.0", "0.3.0", false},
		{"0.10.0", "0.9.0", true},
		{"v1.0.0", "0.9.9", true},
		{"0.0.0", "0.1.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVersionGreaterThan(tt.version, tt.target), "%s > %s", tt.version, tt.target)
	}
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	assert.True(t, IsVersionGreaterOrEqualThan("0.3.0", "0.3.0"))
	assert.True(t, IsVersionGreaterOrEqualThan("0.3.1", "0.3.0"))
	assert.False(t, IsVersionGreaterOrEqualThan("0.2.0", "0.3.0"))
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, Version+"-dev", GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
