package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seqrelay/seqrelay/internal/assets"
	"github.com/seqrelay/seqrelay/internal/errors"
)

// DictionaryEntry describes one canonical field: the heading printed in
// the official template plus the alternate spellings labs send.
type DictionaryEntry struct {
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Dictionary is the canonical field vocabulary and its header spellings.
type Dictionary struct {
	Version string                     `yaml:"version"`
	Fields  map[string]DictionaryEntry `yaml:"fields"`
}

// LoadDictionary reads a mapping dictionary from path, or the embedded
// default when path is empty.
func LoadDictionary(path string) (*Dictionary, error) {
	const op = errors.Op("mapper.LoadDictionary")

	var data []byte
	if path == "" {
		data = assets.Dictionary()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.E(op, errors.KindIO, err, "reading dictionary")
		}
	}

	dict := &Dictionary{}
	if err := yaml.Unmarshal(data, dict); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "parsing dictionary")
	}

	if len(dict.Fields) == 0 {
		return nil, errors.E(op, errors.KindConfig, "dictionary defines no fields")
	}
	for name, entry := range dict.Fields {
		if entry.Label == "" {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("dictionary field %q has no label", name))
		}
	}

	return dict, nil
}
