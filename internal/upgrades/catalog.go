package upgrades

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicateID is returned when two catalog entries share an id.
	ErrDuplicateID = errors.New("duplicate upgrade id")
	// ErrDanglingPrerequisite is returned when a prerequisite names no catalog entry.
	ErrDanglingPrerequisite = errors.New("prerequisite references unknown upgrade")
	// ErrPrerequisiteCycle is returned when prerequisites loop back on themselves.
	ErrPrerequisiteCycle = errors.New("prerequisite cycle")
)

// Catalog is the immutable, load-once table of upgrade definitions.
type Catalog struct {
	defs      []Definition
	byID      map[string]int
	malformed map[string]error
}

type catalogFile struct {
	Upgrades []Definition `json:"upgrades" yaml:"upgrades"`
}

// NewCatalog validates defs as a whole. Duplicate ids, dangling prerequisites
// and prerequisite cycles fail the load; individually malformed entries are
// kept and reported through Malformed so they are never offered.
func NewCatalog(defs []Definition) (*Catalog, error) {
	catalog := &Catalog{
		defs:      make([]Definition, len(defs)),
		byID:      make(map[string]int, len(defs)),
		malformed: make(map[string]error),
	}
	var problems []string
	for i, def := range defs {
		def.Category.Kind = CategoryKind(strings.ToLower(strings.TrimSpace(string(def.Category.Kind))))
		catalog.defs[i] = def
		if err := catalog.defs[i].Validate(); err != nil {
			catalog.malformed[entryKey(def, i)] = err
		}
		if def.ID == "" {
			continue
		}
		if _, exists := catalog.byID[def.ID]; exists {
			problems = append(problems, fmt.Sprintf("%v: %s", ErrDuplicateID, def.ID))
			continue
		}
		catalog.byID[def.ID] = i
	}
	for _, def := range catalog.defs {
		if def.Prerequisite == "" || def.Prerequisite == def.ID {
			continue
		}
		if _, ok := catalog.byID[def.Prerequisite]; !ok {
			problems = append(problems, fmt.Sprintf("%v: %s requires %s", ErrDanglingPrerequisite, def.ID, def.Prerequisite))
		}
	}
	if len(problems) == 0 {
		if err := catalog.checkCycles(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("upgrade catalog: %s", strings.Join(problems, "; "))
	}
	return catalog, nil
}

func entryKey(def Definition, index int) string {
	if def.ID != "" {
		return def.ID
	}
	return fmt.Sprintf("#%d", index)
}

func (c *Catalog) checkCycles() error {
	//1.- Every entry has at most one prerequisite, so walking the chain detects loops.
	for _, def := range c.defs {
		if def.Prerequisite == def.ID {
			continue
		}
		seen := map[string]bool{def.ID: true}
		for next := def.Prerequisite; next != ""; {
			if seen[next] {
				return fmt.Errorf("%w through %s", ErrPrerequisiteCycle, next)
			}
			seen[next] = true
			idx, ok := c.byID[next]
			if !ok {
				break
			}
			next = c.defs[idx].Prerequisite
		}
	}
	return nil
}

// Parse decodes a catalog document. Files whose name ends in .yaml or .yml are
// decoded as YAML; anything else is JSON.
func Parse(name string, payload []byte) (*Catalog, error) {
	var decoded catalogFile
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return NewCatalog(decoded.Upgrades)
}

// LoadFile reads and validates a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, payload)
}

//go:embed catalog.json
var defaultPayload []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog shared by every run.
func Default() *Catalog {
	defaultOnce.Do(func() {
		//1.- Parse the embedded payload once so concurrent runs share one table.
		defaultCatalog, defaultErr = Parse("catalog.json", defaultPayload)
	})
	//2.- A broken embedded table is a build defect; fail loudly.
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// Load returns the override catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Len returns the number of entries, malformed ones included.
func (c *Catalog) Len() int { return len(c.defs) }

// All returns copies of every entry in catalog order.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, len(c.defs))
	for i := range c.defs {
		def := c.defs[i]
		out[i] = &def
	}
	return out
}

// Lookup returns a copy of the entry with id.
func (c *Catalog) Lookup(id string) (*Definition, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	def := c.defs[idx]
	return &def, true
}

// Malformed maps the id (or #index when missing) of every unusable entry to its problem.
func (c *Catalog) Malformed() map[string]error {
	out := make(map[string]error, len(c.malformed))
	for key, err := range c.malformed {
		out[key] = err
	}
	return out
}
