package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// manifestSchema is the built-in CUE schema a .cue manifest must
// satisfy. It mirrors the Document struct.
const manifestSchema = `
#Resource: {
	kind: "package" | "apt-repository" | "downloaded-file" | "symlink" | "shell-rc-line" | "user-group" | "service-enable"
	name: string & !=""
	params?: {[string]: string}
	depends_on?: [...string]
	reinstall?: bool
}

#Manifest: {
	version?: string
	resources: [...#Resource]
}
`

// Schema validates and decodes CUE manifests against the built-in
// definition.
type Schema struct {
	ctx *cue.Context
	def cue.Value
}

// NewSchema compiles the built-in schema.
func NewSchema() *Schema {
	ctx := cuecontext.New()
	return &Schema{
		ctx: ctx,
		def: ctx.CompileString(manifestSchema),
	}
}

// Decode compiles CUE content, unifies it with the schema, and decodes
// the result into out.
func (s *Schema) Decode(data []byte, filename string, out any) error {
	if err := s.def.Err(); err != nil {
		return fmt.Errorf("compile built-in schema: %w", err)
	}

	v := s.ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile cue manifest: %w", err)
	}

	unified := s.def.LookupPath(cue.ParsePath("#Manifest")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest does not satisfy schema: %w", err)
	}

	return unified.Decode(out)
}
