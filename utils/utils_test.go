package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("hello <% .Name %>", map[string]string{"Name": "gki"})
	require.NoError(t, err)
	assert.Equal(t, "hello gki", string(out))
}

func TestRenderTemplateConditional(t *testing.T) {
	tmpl := "<% if .Version %>v=<% .Version %><% end %>"
	out, err := RenderTemplate(tmpl, map[string]string{"Version": "v1.5.7"})
	require.NoError(t, err)
	assert.Equal(t, "v=v1.5.7", string(out))

	out, err = RenderTemplate(tmpl, map[string]string{"Version": ""})
	require.NoError(t, err)
	assert.Equal(t, "", string(out))
}

func TestCopyGlob(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "fs")
	require.NoError(t, os.WriteFile(filepath.Join(src, "susfs.c"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sus_su.c"), []byte("y"), 0644))

	require.NoError(t, CopyGlob(filepath.Join(src, "*.c"), dest))

	for _, name := range []string{"susfs.c", "sus_su.c"} {
		_, err := os.Stat(filepath.Join(dest, name))
		assert.NoError(t, err)
	}
}

func TestCopyGlobNoMatches(t *testing.T) {
	err := CopyGlob(filepath.Join(t.TempDir(), "*.patch"), t.TempDir())
	assert.Error(t, err)
}
