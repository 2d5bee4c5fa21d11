package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry holds the CUE schemas manifest documents are checked against.
// A cue.Context is not safe for concurrent use, so every access is serialized.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.Mutex
}

// NewSchemaRegistry creates a registry with the schema of every subsystem document.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	for name, src := range builtinSchemas {
		if err := sr.RegisterSchema(name, src); err != nil {
			panic(fmt.Sprintf("built-in manifest schema %s: %v", name, err))
		}
	}
	return sr
}

// RegisterSchema compiles schema and registers its #Document definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	doc := val.LookupPath(cue.ParsePath("#Document"))
	if !doc.Exists() {
		return fmt.Errorf("schema %s has no #Document definition", name)
	}
	sr.schemas[name] = doc
	return nil
}

// Has reports whether a schema is registered under name.
func (sr *SchemaRegistry) Has(name string) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	_, ok := sr.schemas[name]
	return ok
}

// ValidateJSON checks a raw JSON document against the named schema.
func (sr *SchemaRegistry) ValidateJSON(name string, data []byte) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[name]
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}

	dataVal := sr.ctx.CompileBytes(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateDocument checks a Go document against the named schema using its JSON form.
func (sr *SchemaRegistry) ValidateDocument(name string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return sr.ValidateJSON(name, data)
}

// ListSchemas returns the registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtinSchemas = map[string]string{
	"flatpak":   flatpakSchema,
	"extension": extensionSchema,
	"gsetting":  gsettingSchema,
	"system":    systemSchema,
	"shim":      shimSchema,
	"homebrew":  homebrewSchema,
}

const flatpakSchema = `
#Remote: {
	name: string & =~"^[A-Za-z0-9_.-]+$"
	url:  string & =~"^(https?|file)://"
}

#App: {
	// Reverse-DNS application id, e.g. org.gnome.Maps
	id:      string & =~"^[A-Za-z0-9_-]+(\\.[A-Za-z0-9_-]+)+$"
	remote?: string
}

#Document: {
	remotes?: [...#Remote]
	apps?: [...#App]
}
`

const extensionSchema = `
#Extension: {
	uuid:     string & =~"^[^\\s/]+$"
	enabled?: bool
}

#Document: {
	extensions?: [...#Extension]
}
`

const gsettingSchema = `
#Setting: {
	schema: string & =~"^[A-Za-z0-9_-]+(\\.[A-Za-z0-9_-]+)*$"
	key:    string & =~"^[A-Za-z0-9-]+$"
	// GVariant text form, e.g. "'Adwaita-dark'" or "true"
	value: string
}

#Document: {
	settings?: [...#Setting]
}
`

const systemSchema = `
#Document: {
	// COPR repositories as owner/project
	copr?: [...(string & =~"^[^\\s/]+/[^\\s/]+$")]
	groups?: [...(string & !="")]
	packages?: [...(string & =~"^[^\\s:]+$")]
}
`

const shimSchema = `
#Shim: {
	name:    string & =~"^[^\\s/]+$" & !="." & !=".."
	command: string & !=""
}

#Document: {
	shims?: [...#Shim]
}
`

const homebrewSchema = `
#Document: {
	taps?: [...(string & =~"^[^\\s/]+/[^\\s/]+$")]
	formulae?: [...(string & =~"^[^\\s]+$")]
}
`
