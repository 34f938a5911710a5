package queryir

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/restsql/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// ValidateShape checks a decoded document against the embedded CUE
// schema. Failures are INVALID_QUERY errors naming the offending path.
//
// A fresh CUE context is built per call; contexts are not safe for
// concurrent use and the HTTP server validates documents in parallel.
func ValidateShape(doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return ir.WrapError(ir.ErrCodeInvalidQuery, "", "query document is not serialisable", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile query schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename("query.json"))
	if err := value.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Query")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error and its path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return ir.WrapError(ir.ErrCodeInvalidQuery, "", "query document does not match schema", err)
	}
	first := errs[0]
	path := ""
	for i, sel := range first.Path() {
		if i > 0 {
			path += "."
		}
		path += sel
	}
	format, args := first.Msg()
	return &ir.QueryError{
		Code:    ir.ErrCodeInvalidQuery,
		Subject: path,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
