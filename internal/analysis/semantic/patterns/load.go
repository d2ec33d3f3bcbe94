package patterns

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

//go:embed rules/*.yaml rules/schema.json
var builtinFS embed.FS

const schemaURL = "https://taintscan.dev/schemas/rules.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	raw, err := builtinFS.ReadFile("rules/schema.json")
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode rule schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add rule schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// Parse decodes and validates one YAML rule document. The document is
// checked against the rule JSON schema before it is decoded into specs.
func Parse(source string, data []byte) ([]Spec, error) {
	fail := func(err error) ([]Spec, error) {
		return nil, &schemas.PatternRegistryError{Source: source, Err: err}
	}

	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fail(fmt.Errorf("invalid yaml: %w", err))
	}
	if generic == nil {
		return fail(fmt.Errorf("empty rule document"))
	}

	// Round trip through JSON so the validator sees canonical JSON values.
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return fail(fmt.Errorf("rule document is not representable as JSON: %w", err))
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return fail(err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return fail(err)
	}
	if err := sch.Validate(inst); err != nil {
		return fail(fmt.Errorf("schema validation failed: %w", err))
	}

	var doc File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fail(fmt.Errorf("decode rules: %w", err))
	}
	return doc.Rules, nil
}

// Load reads a rule document and builds a registry from it alone.
func Load(source string, r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &schemas.PatternRegistryError{Source: source, Err: err}
	}
	specs, err := Parse(source, data)
	if err != nil {
		return nil, err
	}
	return New(source, specs...)
}

// LoadFile reads rules from a path; "~" is expanded.
func LoadFile(p string) ([]Spec, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return nil, &schemas.PatternRegistryError{Source: p, Err: err}
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, &schemas.PatternRegistryError{Source: p, Err: err}
	}
	return Parse(p, data)
}

var builtinSpecs = sync.OnceValues(func() ([]Spec, error) {
	entries, err := builtinFS.ReadDir("rules")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []Spec
	for _, name := range names {
		data, err := builtinFS.ReadFile(path.Join("rules", name))
		if err != nil {
			return nil, err
		}
		specs, err := Parse("builtin:"+name, data)
		if err != nil {
			return nil, err
		}
		all = append(all, specs...)
	}
	return all, nil
})

// BuiltinSpecs returns the rules shipped with the binary.
func BuiltinSpecs() ([]Spec, error) {
	specs, err := builtinSpecs()
	if err != nil {
		return nil, err
	}
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out, nil
}

// Builtin returns a registry holding only the shipped rules.
func Builtin() (*Registry, error) {
	specs, err := BuiltinSpecs()
	if err != nil {
		return nil, err
	}
	return New("builtin", specs...)
}

// Compose builds a registry from the builtin rules (unless excluded) plus
// any number of rule files. Any malformed input fails the whole load.
func Compose(includeBuiltin bool, files ...string) (*Registry, error) {
	var specs []Spec
	if includeBuiltin {
		b, err := BuiltinSpecs()
		if err != nil {
			return nil, err
		}
		specs = append(specs, b...)
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		fs, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fs...)
	}
	source := "builtin"
	if len(files) > 0 {
		source = strings.Join(files, ",")
	}
	if len(specs) == 0 {
		return nil, &schemas.PatternRegistryError{Source: source, Err: fmt.Errorf("no rules loaded")}
	}
	return New(source, specs...)
}
