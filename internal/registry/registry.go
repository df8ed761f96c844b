// Package registry loads the read-only lookup tables the transformer
// cross-references: geographic location codes and laboratory address
// records. Registries are immutable once loaded and shared across
// workers; a missing or malformed registry is fatal for the run.
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seqrelay/seqrelay/internal/assets"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/mapper"
)

// Registry names as referenced by schema definitions.
const (
	Geographic = "geographic"
	Laboratory = "laboratory"
)

// GeoLocation is one geographic registry record.
type GeoLocation struct {
	Code    string `json:"code"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Lab is one laboratory registry record.
type Lab struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email"`
}

type geoDocument struct {
	Version   string        `json:"version"`
	Locations []GeoLocation `json:"locations"`
}

type labDocument struct {
	Version      string `json:"version"`
	Laboratories []Lab  `json:"laboratories"`
}

// Set holds both registries, indexed for lookup.
type Set struct {
	geoVersion string
	labVersion string
	geoByCode  map[string]GeoLocation
	labByName  map[string]Lab // keyed by normalized name
}

// Load reads both registries, from files when paths are given or from
// the embedded defaults otherwise.
func Load(geoPath, labPath string) (*Set, error) {
	const op = errors.Op("registry.Load")

	geoData, err := readSource(geoPath, "geographic_locations")
	if err != nil {
		return nil, errors.WrapMsg(op, "geographic registry", err)
	}
	labData, err := readSource(labPath, "laboratory_addresses")
	if err != nil {
		return nil, errors.WrapMsg(op, "laboratory registry", err)
	}

	var geoDoc geoDocument
	if err := json.Unmarshal(geoData, &geoDoc); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "parsing geographic registry")
	}
	var labDoc labDocument
	if err := json.Unmarshal(labData, &labDoc); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "parsing laboratory registry")
	}

	if len(geoDoc.Locations) == 0 {
		return nil, errors.E(op, errors.KindConfig, "geographic registry is empty")
	}
	if len(labDoc.Laboratories) == 0 {
		return nil, errors.E(op, errors.KindConfig, "laboratory registry is empty")
	}

	s := &Set{
		geoVersion: geoDoc.Version,
		labVersion: labDoc.Version,
		geoByCode:  make(map[string]GeoLocation, len(geoDoc.Locations)),
		labByName:  make(map[string]Lab, len(labDoc.Laboratories)),
	}

	for _, loc := range geoDoc.Locations {
		if loc.Code == "" {
			return nil, errors.E(op, errors.KindConfig, "geographic registry entry without code")
		}
		if _, dup := s.geoByCode[loc.Code]; dup {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("duplicate geographic code %q", loc.Code))
		}
		s.geoByCode[loc.Code] = loc
	}

	for _, lab := range labDoc.Laboratories {
		if lab.Name == "" {
			return nil, errors.E(op, errors.KindConfig, "laboratory registry entry without name")
		}
		key := mapper.Normalize(lab.Name)
		if _, dup := s.labByName[key]; dup {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("duplicate laboratory %q", lab.Name))
		}
		s.labByName[key] = lab
	}

	return s, nil
}

func readSource(path, embedded string) ([]byte, error) {
	if path == "" {
		return assets.Registry(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.KindIO, err, "reading registry file")
	}
	return data, nil
}

// Versions returns the geographic and laboratory registry versions.
func (s *Set) Versions() (geo, lab string) {
	return s.geoVersion, s.labVersion
}

// GeoByCode looks up a geographic record by its code.
func (s *Set) GeoByCode(code string) (GeoLocation, bool) {
	loc, ok := s.geoByCode[code]
	return loc, ok
}

// LabByName looks up a laboratory record by name, tolerating case and
// spacing differences.
func (s *Set) LabByName(name string) (Lab, bool) {
	lab, ok := s.labByName[mapper.Normalize(name)]
	return lab, ok
}

// KeyField returns the canonical input field that keys a registry.
func KeyField(registry string) (string, bool) {
	switch registry {
	case Geographic:
		return "geo_loc_code", true
	case Laboratory:
		return "collecting_institution", true
	}
	return "", false
}

// ValidAttr reports whether a registry exposes the named attribute.
func ValidAttr(registry, attr string) bool {
	switch registry {
	case Geographic:
		switch attr {
		case "city", "state", "country":
			return true
		}
	case Laboratory:
		switch attr {
		case "address", "city", "state", "country", "postal_code", "email":
			return true
		}
	}
	return false
}

// Attr resolves one registry attribute for a key value.
func (s *Set) Attr(registry, attr, key string) (string, bool) {
	switch registry {
	case Geographic:
		loc, ok := s.GeoByCode(key)
		if !ok {
			return "", false
		}
		switch attr {
		case "city":
			return loc.City, loc.City != ""
		case "state":
			return loc.State, loc.State != ""
		case "country":
			return loc.Country, loc.Country != ""
		}
	case Laboratory:
		lab, ok := s.LabByName(key)
		if !ok {
			return "", false
		}
		switch attr {
		case "address":
			return lab.Address, lab.Address != ""
		case "city":
			return lab.City, lab.City != ""
		case "state":
			return lab.State, lab.State != ""
		case "country":
			return lab.Country, lab.Country != ""
		case "postal_code":
			return lab.PostalCode, lab.PostalCode != ""
		case "email":
			return lab.Email, lab.Email != ""
		}
	}
	return "", false
}
