// Package assets ships the default configuration artifacts the engine
// needs to run out of the box: the header mapping dictionary, the three
// target schema definitions, the lookup registries, and the default
// configuration file. Each can be shadowed by a user-supplied file.
package assets

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed config.yaml dictionary.yaml schemas/*.json registries/*.json
var fs embed.FS

// DefaultConfig returns the embedded default configuration file.
func DefaultConfig() []byte {
	data, err := fs.ReadFile("config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// Dictionary returns the embedded header mapping dictionary.
func Dictionary() []byte {
	data, err := fs.ReadFile("dictionary.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded dictionary.yaml missing: %v", err))
	}
	return data
}

// Schema returns the embedded schema definition for a target.
func Schema(target string) ([]byte, error) {
	data, err := fs.ReadFile("schemas/" + strings.ToLower(target) + ".json")
	if err != nil {
		return nil, fmt.Errorf("no embedded schema for target %q", target)
	}
	return data, nil
}

// SchemaTargets lists the targets with an embedded schema, sorted.
func SchemaTargets() []string {
	entries, err := fs.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("embedded schemas missing: %v", err))
	}
	targets := make([]string, 0, len(entries))
	for _, e := range entries {
		targets = append(targets, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(targets)
	return targets
}

// Registry returns the embedded registry document by name
// ("geographic_locations" or "laboratory_addresses").
func Registry(name string) ([]byte, error) {
	data, err := fs.ReadFile("registries/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("no embedded registry %q", name)
	}
	return data, nil
}
