package scene

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is a scene file that does not satisfy the schema.
type ValidationError struct {
	File    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Validator checks scene JSON against the embedded CUE schema.
// A Validator is not safe for concurrent use; cue.Context is single-threaded.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the scene schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile scene schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Scene"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Scene: %w", err)
	}
	return &Validator{ctx: ctx, schema: def}, nil
}

// Validate checks one scene document. JSON is valid CUE, so the document is
// compiled directly and unified with #Scene.
func (v *Validator) Validate(file string, data []byte) error {
	doc := v.ctx.CompileBytes(data, cue.Filename(file))
	if err := doc.Err(); err != nil {
		return formatCUEError(file, err)
	}
	unified := v.schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(file, err)
	}
	return nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(file string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{File: file, Message: err.Error()}
	}
	first := errs[0]
	ve := &ValidationError{File: file, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
