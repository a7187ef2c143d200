// Package catalog holds the static seed catalog: the dependency order of seed
// files, their target collections, their schemas and their foreign keys.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/seedloader/internal/domain"
	"github.com/heartmarshall/seedloader/internal/seed/schema"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// SchemaProvider resolves the schema of a seed file.
type SchemaProvider interface {
	Schema(fileName string) (*schema.Schema, bool)
}

// FKProvider resolves the foreign keys declared by an entity type.
type FKProvider interface {
	References(entity string) []Reference
}

// Reference declares a foreign-key field of an entity.
type Reference struct {
	Field    string `yaml:"field"`
	Target   string `yaml:"target"`
	Optional bool   `yaml:"optional"`
	// Many marks a field holding a list of keys rather than a single key.
	Many bool `yaml:"many"`
}

// Entry is one step of the dependency order.
type Entry struct {
	Entity        string         `yaml:"entity"`
	FileName      string         `yaml:"file"`
	LoadOperation string         `yaml:"load"`
	PrimaryKey    string         `yaml:"primary_key"`
	Database      string         `yaml:"database"`
	Collection    string         `yaml:"collection"`
	Schema        *schema.Schema `yaml:"schema"`
	References    []Reference    `yaml:"references"`
}

// ForeignKeys returns the field → target entity map of the entry.
func (e Entry) ForeignKeys() map[string]string {
	fks := make(map[string]string, len(e.References))
	for _, r := range e.References {
		fks[r.Field] = r.Target
	}
	return fks
}

// OptionalFields returns the foreign-key fields that may be absent.
func (e Entry) OptionalFields() map[string]bool {
	set := make(map[string]bool)
	for _, r := range e.References {
		if r.Optional {
			set[r.Field] = true
		}
	}
	return set
}

// ListFields returns the foreign-key fields that hold a list of keys.
func (e Entry) ListFields() map[string]bool {
	set := make(map[string]bool)
	for _, r := range e.References {
		if r.Many {
			set[r.Field] = true
		}
	}
	return set
}

// Catalog is the validated, ordered set of entries.
type Catalog struct {
	entries  []Entry
	byFile   map[string]int
	byEntity map[string]int
}

var (
	_ SchemaProvider = (*Catalog)(nil)
	_ FKProvider     = (*Catalog)(nil)
)

type document struct {
	Entities []Entry `yaml:"entities"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError("read catalog %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewConfigurationError("decode catalog: %v", err)
	}
	return New(doc.Entities)
}

// New validates entries and builds a catalog preserving their order.
func New(entries []Entry) (*Catalog, error) {
	if err := validate(entries); err != nil {
		return nil, err
	}

	c := &Catalog{
		entries:  make([]Entry, len(entries)),
		byFile:   make(map[string]int, len(entries)),
		byEntity: make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i, e := range entries {
		c.byFile[e.FileName] = i
		c.byEntity[e.Entity] = i
	}
	return c, nil
}

// Entries returns the dependency order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Entry looks up the entry of a seed file.
func (c *Catalog) Entry(fileName string) (Entry, bool) {
	i, ok := c.byFile[fileName]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Schema implements SchemaProvider.
func (c *Catalog) Schema(fileName string) (*schema.Schema, bool) {
	e, ok := c.Entry(fileName)
	if !ok {
		return nil, false
	}
	return e.Schema, true
}

// References implements FKProvider.
func (c *Catalog) References(entity string) []Reference {
	i, ok := c.byEntity[entity]
	if !ok {
		return nil
	}
	return c.entries[i].References
}

// Databases returns every distinct database named by the catalog, in order of first use.
func (c *Catalog) Databases() []string {
	seen := make(map[string]bool)
	var dbs []string
	for _, e := range c.entries {
		if !seen[e.Database] {
			seen[e.Database] = true
			dbs = append(dbs, e.Database)
		}
	}
	return dbs
}

// Files returns the seed file names in dependency order.
func (c *Catalog) Files() []string {
	files := make([]string, len(c.entries))
	for i, e := range c.entries {
		files[i] = e.FileName
	}
	return files
}

func validate(entries []Entry) error {
	if len(entries) == 0 {
		return domain.NewConfigurationError("catalog declares no entities")
	}

	files := make(map[string]bool)
	entities := make(map[string]bool)
	targets := make(map[string]string)

	for i, e := range entries {
		where := fmt.Sprintf("entry %d (%s)", i, e.FileName)

		switch {
		case e.Entity == "":
			return domain.NewConfigurationError("%s: entity is required", where)
		case e.FileName == "":
			return domain.NewConfigurationError("%s: file is required", where)
		case e.PrimaryKey == "":
			return domain.NewConfigurationError("%s: primary_key is required", where)
		case e.Database == "" || e.Collection == "":
			return domain.NewConfigurationError("%s: database and collection are required", where)
		case e.LoadOperation == "":
			return domain.NewConfigurationError("%s: load operation is required", where)
		case e.Schema == nil:
			return domain.NewConfigurationError("%s: schema is required", where)
		}

		if files[e.FileName] {
			return domain.NewConfigurationError("%s: duplicate file", where)
		}
		if entities[e.Entity] {
			return domain.NewConfigurationError("%s: duplicate entity %q", where, e.Entity)
		}
		target := e.Database + "." + e.Collection
		if other, ok := targets[target]; ok {
			return domain.NewConfigurationError("%s: collection %s already used by %s", where, target, other)
		}

		if err := e.Schema.Compile(); err != nil {
			return domain.NewConfigurationError("%s: %v", where, err)
		}
		if err := checkPrimaryKey(e.Schema, e.PrimaryKey); err != nil {
			return domain.NewConfigurationError("%s: %v", where, err)
		}

		seenFields := make(map[string]bool)
		for _, r := range e.References {
			if !e.Schema.Has(r.Field) {
				return domain.NewConfigurationError("%s: reference field %q is not declared in the schema", where, r.Field)
			}
			if seenFields[r.Field] {
				return domain.NewConfigurationError("%s: reference field %q declared twice", where, r.Field)
			}
			seenFields[r.Field] = true
			// Targets must already be registered when this entry is checked.
			if r.Target != e.Entity && !entities[r.Target] {
				return domain.NewConfigurationError("%s: reference %s -> %s must follow the %s entry", where, r.Field, r.Target, r.Target)
			}
		}

		files[e.FileName] = true
		entities[e.Entity] = true
		targets[target] = e.FileName
	}

	return nil
}

// checkPrimaryKey rejects keys that could validate yet not be stored: the
// field must be required, non-null and a scalar string or integer.
func checkPrimaryKey(s *schema.Schema, name string) error {
	f := s.Fields[name]
	switch {
	case !s.IsRequired(name):
		return fmt.Errorf("primary key %q must be a required field", name)
	case f.Nullable:
		return fmt.Errorf("primary key %q must not be nullable", name)
	case f.Type != schema.TypeString && f.Type != schema.TypeInteger:
		return fmt.Errorf("primary key %q must be a string or integer, not %s", name, f.Type)
	}
	return nil
}
