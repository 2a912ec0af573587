package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	parts, err := Split(input)
	require.NoError(t, err)
	require.False(t, parts.Had)
	require.Empty(t, parts.Frontmatter)
	require.Equal(t, input, parts.Body)
	require.Equal(t, 1, parts.BodyLine)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\nkey: value\nother: 1\n---\n# Title\n")

	parts, err := Split(input)
	require.NoError(t, err)
	require.True(t, parts.Had)
	require.Equal(t, []byte("key: value\nother: 1\n"), parts.Frontmatter)
	require.Equal(t, []byte("# Title\n"), parts.Body)
	require.Equal(t, 5, parts.BodyLine)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	input := []byte("---\nkey: value\n# Title\n")

	parts, err := Split(input)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
	require.False(t, parts.Had)
	require.Equal(t, input, parts.Body)
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\r\nkey: value\r\n---\r\n# Title\r\n")

	parts, err := Split(input)
	require.NoError(t, err)
	require.True(t, parts.Had)
	require.Equal(t, []byte("key: value\r\n"), parts.Frontmatter)
	require.Equal(t, []byte("# Title\r\n"), parts.Body)
	require.Equal(t, 4, parts.BodyLine)
}

func TestSplit_EmptyFrontmatterBlock_SplitsAsHadWithEmptyFrontmatter(t *testing.T) {
	parts, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, parts.Had)
	require.Empty(t, parts.Frontmatter)
	require.Equal(t, []byte("# Title\n"), parts.Body)
	require.Equal(t, 3, parts.BodyLine)
}

func TestParseYAML_ValidYAML_ReturnsMap(t *testing.T) {
	fields, err := ParseYAML([]byte("uid: abc\ntags:\n  - one\n"))
	require.NoError(t, err)
	require.Equal(t, "abc", fields["uid"])
	require.Equal(t, []any{"one"}, fields["tags"])
}

func TestParseYAML_Empty_ReturnsEmptyMap(t *testing.T) {
	fields, err := ParseYAML(nil)
	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestParseYAML_InvalidYAML_ReturnsError(t *testing.T) {
	_, err := ParseYAML([]byte(": not yaml"))
	require.Error(t, err)
}
