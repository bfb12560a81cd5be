package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, id, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".tmpl"), []byte(src), 0o644))
}

func TestRenderBasic(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greeting", "hello {{.name}}\n")

	r := New(dir)
	out, err := r.Render("greeting", Context{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestRenderDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "servers", "{{range .servers}}server={{.}}\n{{end}}")

	r := New(dir)
	ctx := Context{"servers": []string{"10.0.0.1", "10.0.0.2"}}
	first, err := r.Render("servers", ctx)
	require.NoError(t, err)
	second, err := r.Render("servers", ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderMissingKeyIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "opt", "a={{.present}} b={{.absent}}\n")

	r := New(dir)
	out, err := r.Render("opt", Context{"present": "x"})
	require.NoError(t, err)
	assert.Equal(t, "a=x b=\n", out)
}

func TestRenderMissingTemplate(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Render("nope", Context{})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderMalformedTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken", "{{range .servers}}no end\n")

	r := New(dir)
	_, err := r.Render("broken", Context{})
	assert.ErrorIs(t, err, ErrTemplateInvalid)
}

func TestRenderSwappableSource(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "v", "one\n")

	r := New(dir)
	out, err := r.Render("v", Context{})
	require.NoError(t, err)
	assert.Equal(t, "one\n", out)

	// Template files are read per render, so deployments can swap them
	// without restarting the daemon.
	writeTemplate(t, dir, "v", "two\n")
	out, err = r.Render("v", Context{})
	require.NoError(t, err)
	assert.Equal(t, "two\n", out)
}
