package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoName(t *testing.T) {
	assert.Equal(t, "deepsite-my-cool-site", RepoName("My Cool Site"))
	assert.Equal(t, "deepsite-demo", RepoName("  Demo "))
}

func TestDirName(t *testing.T) {
	name, ok := DirName("My Site")
	assert.True(t, ok)
	assert.Equal(t, "My Site", name)

	name, ok = DirName("../../etc")
	assert.True(t, ok)
	assert.Equal(t, "..-..-etc", name)

	for _, bad := range []string{"", "  ", ".", ".."} {
		_, ok = DirName(bad)
		assert.False(t, ok, bad)
	}
}

func TestDetermineFileType(t *testing.T) {
	assert.Equal(t, "HTML", DetermineFileType("index.html"))
	assert.Equal(t, "Markdown", DetermineFileType("README.md"))
	assert.Equal(t, "TOML", DetermineFileType("netlify.toml"))
	assert.Equal(t, "JSON", DetermineFileType("vercel.json"))
	assert.Equal(t, "Unknown", DetermineFileType("Makefile"))
}
