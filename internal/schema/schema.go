// Package schema loads target schema definitions and verifies them
// against the canonical vocabulary, the registries, and the configured
// defaults before any record is transformed. A schema that references
// a field, registry attribute, or default key that does not exist is
// rejected at load time rather than mid-run.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/seqrelay/seqrelay/internal/assets"
	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/mapper"
	"github.com/seqrelay/seqrelay/internal/registry"
)

// FieldType enumerates the value types a schema field can declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeDate    FieldType = "date"
)

func validType(t FieldType) bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeDate:
		return true
	}
	return false
}

// Field is one output field of a target schema. Name is the canonical
// field the value is sourced from; Rename, when set, is the key the
// target expects in its output. Registry and Default name fallback
// sources tried when the record carries no canonical value.
type Field struct {
	Name     string    `json:"name"`
	Rename   string    `json:"rename,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Enum     []string  `json:"enum,omitempty"`
	FoldCase bool      `json:"fold_case,omitempty"`
	Registry string    `json:"registry,omitempty"`
	Default  string    `json:"default,omitempty"`
}

// OutputName returns the key this field uses in target payloads.
func (f *Field) OutputName() string {
	if f.Rename != "" {
		return f.Rename
	}
	return f.Name
}

// RegistrySource splits the registry hint into registry name and
// attribute. ok is false when no hint is set.
func (f *Field) RegistrySource() (reg, attr string, ok bool) {
	if f.Registry == "" {
		return "", "", false
	}
	reg, attr, found := strings.Cut(f.Registry, ".")
	if !found {
		return f.Registry, "", true
	}
	return reg, attr, true
}

// Definition is a parsed target schema. Fields keeps the definition
// order, which is also the output column order.
type Definition struct {
	Target  string  `json:"schema"`
	Version string  `json:"version"`
	Fields  []Field `json:"fields"`
}

// Targets lists the targets shipped with the binary.
func Targets() []string {
	return assets.SchemaTargets()
}

// Load reads a schema definition from a file.
func Load(path string) (*Definition, error) {
	const op = errors.Op("schema.Load")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "reading schema file")
	}
	return parse(op, data)
}

// LoadTarget reads the embedded schema definition for a target.
func LoadTarget(target string) (*Definition, error) {
	const op = errors.Op("schema.LoadTarget")
	data, err := assets.Schema(target)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	return parse(op, data)
}

func parse(op errors.Op, data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "parsing schema definition")
	}
	if def.Target == "" {
		return nil, errors.E(op, errors.KindConfig, "schema definition missing target name")
	}
	if len(def.Fields) == 0 {
		return nil, errors.E(op, errors.KindConfig,
			fmt.Sprintf("schema %q defines no fields", def.Target))
	}

	seenName := make(map[string]bool, len(def.Fields))
	seenOut := make(map[string]bool, len(def.Fields))
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Name == "" {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: field %d has no name", def.Target, i))
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		if !validType(f.Type) {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: field %q has unknown type %q", def.Target, f.Name, f.Type))
		}
		if f.FoldCase && len(f.Enum) == 0 {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: field %q sets fold_case without an enum", def.Target, f.Name))
		}
		if seenName[f.Name] {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: duplicate field %q", def.Target, f.Name))
		}
		seenName[f.Name] = true
		out := f.OutputName()
		if seenOut[out] {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: duplicate output name %q", def.Target, out))
		}
		seenOut[out] = true
	}
	return &def, nil
}

// Check verifies that every field has at least one viable source:
// a canonical name in the vocabulary, a registry attribute that
// exists, or a default key the configuration resolves. Broken
// registry hints and dangling default keys are rejected even when
// another source would cover the field.
func (d *Definition) Check(table *mapper.Table, cfg *config.Config) error {
	const op = errors.Op("schema.Check")
	for i := range d.Fields {
		f := &d.Fields[i]
		viable := table.IsCanonical(f.Name)

		if reg, attr, ok := f.RegistrySource(); ok {
			if !registry.ValidAttr(reg, attr) {
				return errors.E(op, errors.KindConfig,
					fmt.Sprintf("schema %q: field %q references unknown registry attribute %q",
						d.Target, f.Name, f.Registry))
			}
			keyField, _ := registry.KeyField(reg)
			if !table.IsCanonical(keyField) {
				return errors.E(op, errors.KindConfig,
					fmt.Sprintf("schema %q: registry %q key field %q is not in the vocabulary",
						d.Target, reg, keyField))
			}
			viable = true
		}

		if f.Default != "" {
			if _, ok := cfg.LookupDefault(f.Default); !ok {
				return errors.E(op, errors.KindConfig,
					fmt.Sprintf("schema %q: field %q default %q does not resolve",
						d.Target, f.Name, f.Default))
			}
			viable = true
		}

		if !viable {
			return errors.E(op, errors.KindConfig,
				fmt.Sprintf("schema %q: field %q has no viable source", d.Target, f.Name))
		}
	}
	return nil
}

// OutputNames returns the payload keys in definition order.
func (d *Definition) OutputNames() []string {
	names := make([]string, len(d.Fields))
	for i := range d.Fields {
		names[i] = d.Fields[i].OutputName()
	}
	return names
}
