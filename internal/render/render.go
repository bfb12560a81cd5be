package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Package render turns a template id plus a context mapping into text.
// Template sources live as <id>.tmpl files in a directory chosen at
// construction, so deployments can swap them without a code change.

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateInvalid  = errors.New("template invalid")
)

// Context holds the values a template may reference. Keys absent from the
// context render as empty text rather than failing the render.
type Context map[string]interface{}

type Renderer struct {
	dir string
}

func New(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Render reads <dir>/<id>.tmpl and executes it against ctx. It fails only
// when the template source is missing or malformed, never because of
// context content. Identical (id, ctx) pairs always produce identical
// text.
func (r *Renderer) Render(id string, ctx Context) (string, error) {
	path := filepath.Join(r.dir, id+".tmpl")
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return "", fmt.Errorf("read template %s: %w", id, err)
	}

	t, err := template.New(id).Option("missingkey=zero").Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateInvalid, id, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateInvalid, id, err)
	}

	// missingkey=zero still prints untyped nils as "<no value>"; an absent
	// optional field must come out empty instead.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
