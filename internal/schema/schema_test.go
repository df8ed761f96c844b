package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/mapper"
)

func TestTargets(t *testing.T) {
	got := Targets()
	want := []string{"ena", "gisaid", "relecov"}
	if len(got) != len(want) {
		t.Fatalf("Targets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Targets()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadTargetEmbedded(t *testing.T) {
	for _, target := range Targets() {
		t.Run(target, func(t *testing.T) {
			def, err := LoadTarget(target)
			if err != nil {
				t.Fatalf("LoadTarget(%q) error = %v", target, err)
			}
			if def.Target != target {
				t.Errorf("Target = %q, want %q", def.Target, target)
			}
			if def.Version == "" {
				t.Error("Version is empty")
			}
			if len(def.Fields) == 0 {
				t.Error("no fields")
			}
		})
	}

	if _, err := LoadTarget("unknown"); err == nil {
		t.Error("LoadTarget(unknown) expected error")
	}
}

func TestLoadTargetCaseInsensitive(t *testing.T) {
	def, err := LoadTarget("RELECOV")
	if err != nil {
		t.Fatalf("LoadTarget(RELECOV) error = %v", err)
	}
	if def.Target != "relecov" {
		t.Errorf("Target = %q, want relecov", def.Target)
	}
}

func TestOutputNames(t *testing.T) {
	def, err := LoadTarget("ena")
	if err != nil {
		t.Fatalf("LoadTarget error = %v", err)
	}
	for _, name := range def.OutputNames() {
		if !strings.HasPrefix(name, "ena_") {
			t.Errorf("output name %q does not carry the ena_ prefix", name)
		}
	}

	def, err = LoadTarget("gisaid")
	if err != nil {
		t.Fatalf("LoadTarget error = %v", err)
	}
	for _, name := range def.OutputNames() {
		if !strings.HasPrefix(name, "covv_") {
			t.Errorf("output name %q does not carry the covv_ prefix", name)
		}
	}
}

func TestOutputNameFallsBackToName(t *testing.T) {
	f := Field{Name: "organism"}
	if got := f.OutputName(); got != "organism" {
		t.Errorf("OutputName() = %q, want organism", got)
	}
	f.Rename = "ena_organism"
	if got := f.OutputName(); got != "ena_organism" {
		t.Errorf("OutputName() = %q, want ena_organism", got)
	}
}

func TestRegistrySource(t *testing.T) {
	f := Field{Name: "geo_loc_state", Registry: "geographic.state"}
	reg, attr, ok := f.RegistrySource()
	if !ok || reg != "geographic" || attr != "state" {
		t.Errorf("RegistrySource() = %q, %q, %v", reg, attr, ok)
	}

	f = Field{Name: "organism"}
	if _, _, ok := f.RegistrySource(); ok {
		t.Error("RegistrySource() ok for field without hint")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	doc := `{
		"schema": "custom",
		"version": "0.1.0",
		"fields": [
			{"name": "organism", "type": "string", "required": true}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if def.Target != "custom" {
		t.Errorf("Target = %q, want custom", def.Target)
	}
	if def.Fields[0].Type != TypeString {
		t.Errorf("Type = %q, want string", def.Fields[0].Type)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsKind(err, errors.KindIO) {
		t.Errorf("kind = %v, want io", errors.GetKind(err))
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "malformed json",
			doc:  "{not json",
			want: "parsing",
		},
		{
			name: "missing target",
			doc:  `{"version":"1","fields":[{"name":"organism"}]}`,
			want: "missing target",
		},
		{
			name: "no fields",
			doc:  `{"schema":"x","version":"1","fields":[]}`,
			want: "no fields",
		},
		{
			name: "field without name",
			doc:  `{"schema":"x","version":"1","fields":[{"type":"string"}]}`,
			want: "has no name",
		},
		{
			name: "unknown type",
			doc:  `{"schema":"x","version":"1","fields":[{"name":"organism","type":"boolean"}]}`,
			want: "unknown type",
		},
		{
			name: "fold_case without enum",
			doc:  `{"schema":"x","version":"1","fields":[{"name":"organism","fold_case":true}]}`,
			want: "fold_case",
		},
		{
			name: "duplicate field",
			doc:  `{"schema":"x","version":"1","fields":[{"name":"organism"},{"name":"organism","rename":"other"}]}`,
			want: "duplicate field",
		},
		{
			name: "duplicate output name",
			doc:  `{"schema":"x","version":"1","fields":[{"name":"organism","rename":"out"},{"name":"host_age","rename":"out"}]}`,
			want: "duplicate output name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schema.json")
			if err := os.WriteFile(path, []byte(tt.doc), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.IsKind(err, errors.KindConfig) {
				t.Errorf("kind = %v, want config", errors.GetKind(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCheckEmbeddedSchemas(t *testing.T) {
	table := mustTable(t)
	cfg := config.DefaultConfig()

	for _, target := range Targets() {
		t.Run(target, func(t *testing.T) {
			def, err := LoadTarget(target)
			if err != nil {
				t.Fatalf("LoadTarget error = %v", err)
			}
			if err := def.Check(table, cfg); err != nil {
				t.Errorf("Check() error = %v", err)
			}
		})
	}
}

func TestCheckRejections(t *testing.T) {
	table := mustTable(t)
	cfg := config.DefaultConfig()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{
			name:  "no viable source",
			field: Field{Name: "made_up_field", Type: TypeString},
			want:  "no viable source",
		},
		{
			name:  "unknown registry attribute",
			field: Field{Name: "geo_loc_state", Type: TypeString, Registry: "geographic.postal_code"},
			want:  "unknown registry attribute",
		},
		{
			name:  "unknown registry",
			field: Field{Name: "geo_loc_state", Type: TypeString, Registry: "people.name"},
			want:  "unknown registry attribute",
		},
		{
			name:  "dangling default",
			field: Field{Name: "organism", Type: TypeString, Default: "fixed.no_such_key"},
			want:  "does not resolve",
		},
		{
			name:  "default carries field without canonical name",
			field: Field{Name: "made_up_field", Type: TypeString, Default: "fixed.no_such_key"},
			want:  "does not resolve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &Definition{
				Target:  "test",
				Version: "1",
				Fields:  []Field{tt.field},
			}
			err := def.Check(table, cfg)
			if err == nil {
				t.Fatal("Check() expected error, got nil")
			}
			if !errors.IsKind(err, errors.KindConfig) {
				t.Errorf("kind = %v, want config", errors.GetKind(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCheckNonCanonicalWithDefaultPasses(t *testing.T) {
	table := mustTable(t)
	cfg := config.DefaultConfig()

	// gisaid-style derived field: not in the vocabulary but sourced
	// from a configured default.
	def := &Definition{
		Target:  "test",
		Version: "1",
		Fields: []Field{
			{Name: "passage", Rename: "covv_passage", Type: TypeString, Required: true, Default: "fixed.passage"},
		},
	}
	if err := def.Check(table, cfg); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func mustTable(t *testing.T) *mapper.Table {
	t.Helper()
	dict, err := mapper.LoadDictionary("")
	if err != nil {
		t.Fatalf("LoadDictionary error = %v", err)
	}
	table, err := mapper.NewTable(dict)
	if err != nil {
		t.Fatalf("NewTable error = %v", err)
	}
	return table
}
