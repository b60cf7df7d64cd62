package classify

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/sui-wrapped/internal/model"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// ProtocolInfo describes one known protocol.
type ProtocolInfo struct {
	Name        string         `yaml:"name"`
	DisplayName string         `yaml:"displayName"`
	Category    model.Category `yaml:"category"`
	Website     string         `yaml:"website"`
	Packages    []string       `yaml:"packages"`
	Modules     []string       `yaml:"modules"`
}

// ActionRule maps a function-name keyword to an action.
type ActionRule struct {
	Keyword string           `yaml:"keyword"`
	Action  model.ActionKind `yaml:"action"`
}

type registryFile struct {
	Version   int            `yaml:"version"`
	Protocols []ProtocolInfo `yaml:"protocols"`
	Actions   []ActionRule   `yaml:"actions"`
}

// Registry is the immutable lookup data behind the classifier.
type Registry struct {
	Version   int
	protocols map[string]ProtocolInfo
	packages  map[string]string
	modules   map[string]string
	actions   []ActionRule
}

// DefaultRegistry parses the registry embedded in the binary.
func DefaultRegistry() *Registry {
	reg, err := ParseRegistry(embeddedRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded protocol registry is invalid: %v", err))
	}
	return reg
}

// LoadRegistryFile reads a registry from path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// LoadRegistry reads a YAML registry from r.
func LoadRegistry(r io.Reader) (*Registry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry builds a Registry from YAML bytes, rejecting conflicting entries.
func ParseRegistry(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	reg := &Registry{
		Version:   file.Version,
		protocols: make(map[string]ProtocolInfo, len(file.Protocols)),
		packages:  make(map[string]string),
		modules:   make(map[string]string),
		actions:   make([]ActionRule, 0, len(file.Actions)),
	}

	for _, p := range file.Protocols {
		if p.Name == "" {
			return nil, fmt.Errorf("protocol without name")
		}
		if p.Name == model.UnknownProtocol {
			return nil, fmt.Errorf("protocol name %q is reserved", p.Name)
		}
		if !p.Category.Valid() {
			return nil, fmt.Errorf("protocol %s: unknown category %q", p.Name, p.Category)
		}
		if _, dup := reg.protocols[p.Name]; dup {
			return nil, fmt.Errorf("protocol %s declared twice", p.Name)
		}
		reg.protocols[p.Name] = p

		for _, pkg := range p.Packages {
			key := strings.ToLower(pkg)
			if owner, taken := reg.packages[key]; taken {
				return nil, fmt.Errorf("package %s mapped to both %s and %s", pkg, owner, p.Name)
			}
			reg.packages[key] = p.Name
		}
		for _, mod := range p.Modules {
			key := strings.ToLower(mod)
			if owner, taken := reg.modules[key]; taken {
				return nil, fmt.Errorf("module %s mapped to both %s and %s", mod, owner, p.Name)
			}
			reg.modules[key] = p.Name
		}
	}

	for _, rule := range file.Actions {
		if rule.Keyword == "" || rule.Action == "" {
			return nil, fmt.Errorf("action rule needs keyword and action")
		}
		rule.Keyword = strings.ToLower(rule.Keyword)
		reg.actions = append(reg.actions, rule)
	}

	return reg, nil
}

// Protocol returns the registry entry for name.
func (r *Registry) Protocol(name string) (ProtocolInfo, bool) {
	p, ok := r.protocols[name]
	return p, ok
}

// ByPackage looks up a protocol by exact package id.
func (r *Registry) ByPackage(pkg string) (ProtocolInfo, bool) {
	name, ok := r.packages[strings.ToLower(pkg)]
	if !ok {
		return ProtocolInfo{}, false
	}
	return r.protocols[name], true
}

// ByModule looks up a protocol by module name.
func (r *Registry) ByModule(module string) (ProtocolInfo, bool) {
	name, ok := r.modules[strings.ToLower(module)]
	if !ok {
		return ProtocolInfo{}, false
	}
	return r.protocols[name], true
}

// Len returns the number of registered protocols.
func (r *Registry) Len() int {
	return len(r.protocols)
}
