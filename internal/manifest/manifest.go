// Package manifest checks package metadata files (composer.json) against a
// CUE schema and extracts the package name.
package manifest

import (
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/multitester/internal/filedoc"
)

// FileName is the metadata file expected at the root of the project
// directory.
const FileName = "composer.json"

// schemaSource constrains only what the assembler relies on. Everything
// else in the file is left open.
const schemaSource = `
#Package: {
	name: string & != ""
	...
}
`

// ErrInvalid is matched by every error returned from PackageName.
var ErrInvalid = errors.New("invalid package metadata")

// ValidationError describes why a metadata document was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

var (
	schemaOnce sync.Once
	cueCtx     *cue.Context
	pkgSchema  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaSource, cue.Filename("manifest.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", err)
			return
		}
		pkgSchema = v.LookupPath(cue.ParsePath("#Package"))
	})
	return cueCtx, pkgSchema, schemaErr
}

// PackageName validates doc and returns its non-empty "name" entry.
func PackageName(doc *filedoc.Document) (string, error) {
	root := doc.Root()
	if root.Kind() != filedoc.KindMapping {
		return "", &ValidationError{Field: "name", Message: fmt.Sprintf("metadata must be a mapping, got %s", root.Kind())}
	}
	if !root.Has("name") {
		return "", &ValidationError{Field: "name", Message: "name is required"}
	}

	// Only the name is decoded. The rest of the file is free-form and may
	// hold values that do not fit Go types.
	data, err := root.Get("name").Interface()
	if err != nil {
		return "", &ValidationError{Field: "name", Message: err.Error()}
	}

	_, schema, err := loadSchema()
	if err != nil {
		return "", err
	}

	unified := schema.FillPath(cue.ParsePath("name"), data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return "", &ValidationError{Field: "name", Message: firstMessage(err)}
	}

	name, err := unified.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return "", &ValidationError{Field: "name", Message: firstMessage(err)}
	}
	return name, nil
}

// firstMessage returns the first CUE error message without positions.
func firstMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}
