package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnum string

const (
	enumAlpha     testEnum = "alpha"
	enumBeta      testEnum = "beta"
	enumFailBuild testEnum = "fail_build"
)

func newTestNormalizer() *Normalizer[testEnum] {
	return NewNormalizer("test enum", map[string]testEnum{
		"alpha":      enumAlpha,
		"beta":       enumBeta,
		"fail-build": enumFailBuild,
	}, enumAlpha)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name     string
		input    string
		expected testEnum
	}{
		{"exact match", "alpha", enumAlpha},
		{"case insensitive", "BETA", enumBeta},
		{"surrounding space", "  beta  ", enumBeta},
		{"hyphen folds to underscore", "fail_build", enumFailBuild},
		{"space folds to underscore", "Fail Build", enumFailBuild},
		{"unknown returns default", "gamma", enumAlpha},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newTestNormalizer()

	v, err := n.Parse("Fail-Build")
	require.NoError(t, err)
	assert.Equal(t, enumFailBuild, v)

	v, err = n.Parse("")
	require.NoError(t, err)
	assert.Equal(t, enumAlpha, v)

	_, err = n.Parse("gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid test enum")
	assert.Contains(t, err.Error(), "alpha, beta, fail_build")
}

func TestNormalizer_ValidKeysIsCopy(t *testing.T) {
	n := newTestNormalizer()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"alpha", "beta", "fail_build"}, n.ValidKeys())
}
