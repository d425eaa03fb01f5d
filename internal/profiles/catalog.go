// Package profiles loads the YAML profile catalogue, validates it against a
// JSON schema and seeds it into the datastore.
package profiles

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

//go:embed catalog.schema.json
var catalogSchema []byte

// Definition is one profile version as written in the catalogue.
type Definition struct {
	TenantID             string             `yaml:"tenant_id"`
	ProfileKey           string             `yaml:"profile_key"`
	ProfileVersion       int                `yaml:"profile_version"`
	ExpectedItemTypes    []string           `yaml:"expected_item_types"`
	FlagsEnabled         []string           `yaml:"flags_enabled"`
	ConfidenceThresholds map[string]float64 `yaml:"confidence_thresholds"`
	IsActive             *bool              `yaml:"is_active"`
}

type Catalog struct {
	Profiles []Definition `yaml:"profiles"`
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("catalog.schema.json", bytes.NewReader(catalogSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("catalog.schema.json")
	})
	return compiled, compileErr
}

// Validate checks a YAML catalogue against the catalogue schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("profiles: decode yaml: %w", err)
	}
	// round-trip through JSON so the validator sees JSON types
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}

	s, err := schema()
	if err != nil {
		return fmt.Errorf("profiles: compile schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("profiles: catalogue does not match schema: %w", err)
	}
	return nil
}

// Parse validates and decodes a YAML catalogue.
func Parse(data []byte) (Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Catalog{}, fmt.Errorf("profiles: catalogue is empty")
	}
	if err := Validate(data); err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("profiles: decode catalogue: %w", err)
	}
	seen := map[string]bool{}
	for _, d := range c.Profiles {
		key := strings.ToLower(d.TenantID) + "/" + d.ProfileKey + "@" + fmt.Sprint(d.ProfileVersion)
		if seen[key] {
			return Catalog{}, fmt.Errorf("profiles: duplicate profile %s", key)
		}
		seen[key] = true
	}
	return c, nil
}

// LoadFile reads and parses a catalogue from disk.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("profiles: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Entity converts the definition into a profile ready to insert.
func (d Definition) Entity() (*entity.DocumentProfile, error) {
	tenantID, err := uuid.Parse(d.TenantID)
	if err != nil {
		return nil, fmt.Errorf("profiles: tenant_id: %w", err)
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	v := common.NewValidator().Field("profile_key", d.ProfileKey, common.Required).
		Field("profile_version", d.ProfileVersion, common.Positive)
	thresholds := make(entity.Thresholds, len(d.ConfidenceThresholds))
	for k, t := range d.ConfidenceThresholds {
		v.Field("confidence_thresholds."+k, t, common.Range01)
		thresholds[k] = t
	}
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("profiles: %s@%d: %w", d.ProfileKey, d.ProfileVersion, err)
	}
	return &entity.DocumentProfile{
		TenantID:             tenantID,
		ProfileKey:           d.ProfileKey,
		ProfileVersion:       d.ProfileVersion,
		ExpectedItemTypes:    d.ExpectedItemTypes,
		FlagsEnabled:         d.FlagsEnabled,
		ConfidenceThresholds: thresholds,
		IsActive:             active,
	}, nil
}
