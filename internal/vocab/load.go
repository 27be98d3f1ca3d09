package vocab

import (
	"embed"
	"fmt"
	"os"
	"path"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed domains/*.cue
var domainFiles embed.FS

// LoadError is a vocabulary error with the CUE position it came from.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Builtin loads the four domains compiled into the binary.
func Builtin() (*Registry, error) {
	ctx := cuecontext.New()
	schema, stop, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := domainFiles.ReadDir("domains")
	if err != nil {
		return nil, err
	}
	var values []cue.Value
	for _, e := range entries {
		name := path.Join("domains", e.Name())
		src, err := domainFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		v := ctx.CompileBytes(src, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		values = append(values, v)
	}
	return build(schema, stop, values)
}

// LoadDir loads domain definitions from a directory of CUE files. The files
// are checked against the builtin schema; they do not need to include it.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("vocabulary directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("error accessing vocabulary directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()
	schema, stop, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return build(schema, stop, []cue.Value{value})
}

func compileSchema(ctx *cue.Context) (cue.Value, []string, error) {
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, nil, formatCUEError(err)
	}
	def := v.LookupPath(cue.ParsePath("#Domain"))
	if !def.Exists() {
		return cue.Value{}, nil, &LoadError{Field: "#Domain", Message: "schema has no #Domain definition"}
	}
	var stop []string
	if err := v.LookupPath(cue.ParsePath("common_stop_words")).Decode(&stop); err != nil {
		return cue.Value{}, nil, formatCUEError(err)
	}
	return def, stop, nil
}

// build checks every domain.<name> field against the schema and decodes it.
func build(schema cue.Value, stop []string, values []cue.Value) (*Registry, error) {
	reg := newRegistry()
	for _, v := range values {
		domains := v.LookupPath(cue.ParsePath("domain"))
		if !domains.Exists() {
			continue
		}
		iter, err := domains.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			label := iter.Label()
			d, err := decodeDomain(schema, iter.Value())
			if err != nil {
				return nil, err
			}
			if d.Name != label {
				return nil, &LoadError{
					Field:   "domain." + label + ".name",
					Message: fmt.Sprintf("name %q does not match key %q", d.Name, label),
					Pos:     iter.Value().Pos(),
				}
			}
			d.StopWords = append(slices.Clone(stop), d.StopWords...)
			if err := d.check(); err != nil {
				return nil, &LoadError{Field: "domain." + label, Message: err.Error(), Pos: iter.Value().Pos()}
			}
			d.index()
			if err := reg.add(d); err != nil {
				return nil, &LoadError{Field: "domain." + label, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}
	if len(reg.domains) == 0 {
		return nil, &LoadError{Field: "domain", Message: "no domains defined"}
	}
	return reg, nil
}

func decodeDomain(schema, v cue.Value) (*Domain, error) {
	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	var d Domain
	if err := u.Decode(&d); err != nil {
		return nil, formatCUEError(err)
	}
	return &d, nil
}

// check verifies cross references the schema cannot express.
func (d *Domain) check() error {
	for _, t := range d.Tables {
		if !slices.Contains(d.Databases, t.Database) {
			return fmt.Errorf("table %s uses undeclared database %q", t.Name, t.Database)
		}
	}
	cols := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		cols[c.Name] = true
	}
	if d.Time.Kind != TimeYearColumns && !cols[d.Time.Column] {
		return fmt.Errorf("time column %q is not a declared column", d.Time.Column)
	}
	for _, m := range d.Metrics {
		for _, c := range m.Columns {
			if !cols[c] {
				return fmt.Errorf("metric %s references unknown column %q", m.Key, c)
			}
		}
		if m.ThresholdColumn != "" && !cols[m.ThresholdColumn] {
			return fmt.Errorf("metric %s threshold column %q is not declared", m.Key, m.ThresholdColumn)
		}
		if m.Database != "" && !slices.Contains(d.Databases, m.Database) {
			return fmt.Errorf("metric %s uses undeclared database %q", m.Key, m.Database)
		}
	}
	for _, c := range d.Categories {
		if !cols[c.Column] {
			return fmt.Errorf("category %s references unknown column %q", c.Name, c.Column)
		}
	}
	for _, c := range d.DefaultColumns {
		if !cols[c] {
			return fmt.Errorf("default column %q is not declared", c)
		}
	}
	if d.Entity != nil {
		if !cols[d.Entity.Column] {
			return fmt.Errorf("entity column %q is not declared", d.Entity.Column)
		}
		if d.Entity.CodeColumn != "" && !cols[d.Entity.CodeColumn] {
			return fmt.Errorf("entity code column %q is not declared", d.Entity.CodeColumn)
		}
	}
	return nil
}

// formatCUEError converts the first CUE error into a positioned LoadError.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
