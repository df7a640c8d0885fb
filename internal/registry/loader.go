package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
)

// Tag schema files declare the canonical classification for every field of
// every service, YAML or JSON:
//
//	version: 1
//	services:
//	  userinfoservice:
//	    fields:
//	      userId:
//	        level: HIGHLY_SENSITIVE
//	        retention: retain-7-years
//	        required: true
//
// The legacy JSON shape from the Python harness is accepted too: fields may
// carry a numeric piiLevel (0-4) and piiLevelName instead of level. When a
// field declares both, they must agree; stale definitions must surface, not
// win by ordering.
//
// Loading is all-or-nothing: one malformed entry rejects the whole file and
// no partial registry is returned.

// schemaFile is the on-disk shape of a tag schema.
type schemaFile struct {
	Version  int                          `yaml:"version" json:"version"`
	Services map[string]serviceSchemaFile `yaml:"services" json:"services"`
}

type serviceSchemaFile struct {
	Description string                     `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      map[string]fieldSchemaFile `yaml:"fields" json:"fields"`
}

type fieldSchemaFile struct {
	Level        string `yaml:"level,omitempty" json:"level,omitempty"`
	PIILevel     *int   `yaml:"piiLevel,omitempty" json:"piiLevel,omitempty"`
	PIILevelName string `yaml:"piiLevelName,omitempty" json:"piiLevelName,omitempty"`
	Retention    string `yaml:"retention" json:"retention"`
	Required     bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// knownFieldKeys are the accepted keys of a field entry. Unknown keys fail
// the load; a typo like "rentention" must not silently drop a policy.
var knownFieldKeys = map[string]bool{
	"level":        true,
	"piiLevel":     true,
	"piiLevelName": true,
	"retention":    true,
	"required":     true,
	"description":  true,
}

// Load reads a tag schema file (YAML or JSON by extension) and returns a
// fully populated registry. Any malformed entry rejects the whole file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewSchemaLoadFailed(path, "failed to read file", err)
	}
	return parse(path, data)
}

// LoadAll reads several schema files into one registry. A field registered
// by two files with conflicting tags is a duplicate-field failure.
func LoadAll(paths []string) (*Registry, error) {
	reg := NewRegistry()
	for _, path := range paths {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, desc := range loaded.All() {
			if err := reg.Register(desc); err != nil {
				return nil, errors.NewSchemaLoadFailed(path, "conflicts with a previously loaded file", err)
			}
		}
	}
	return reg, nil
}

func parse(path string, data []byte) (*Registry, error) {
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	// First pass: reject unknown keys using an untyped unmarshal.
	var raw map[string]interface{}
	if err := unmarshal(data, &raw); err != nil {
		return nil, errors.NewSchemaLoadFailed(path, "failed to parse file", err)
	}
	for key := range raw {
		if key != "version" && key != "services" {
			return nil, errors.NewSchemaLoadFailed(path,
				fmt.Sprintf("unknown top-level key: %s", key), nil)
		}
	}
	if err := checkFieldKeys(raw); err != nil {
		return nil, errors.NewSchemaLoadFailed(path, err.Error(), nil)
	}

	// Second pass: typed unmarshal.
	var file schemaFile
	if err := unmarshal(data, &file); err != nil {
		return nil, errors.NewSchemaLoadFailed(path, "failed to unmarshal schema", err)
	}
	if len(file.Services) == 0 {
		return nil, errors.NewSchemaLoadFailed(path, "schema declares no services", nil)
	}

	reg := NewRegistry()
	for service, serviceSchema := range file.Services {
		if strings.TrimSpace(service) == "" {
			return nil, errors.NewSchemaLoadFailed(path, "empty service name", nil)
		}
		if len(serviceSchema.Fields) == 0 {
			return nil, errors.NewSchemaLoadFailed(path,
				fmt.Sprintf("service %s declares no fields", service), nil)
		}
		for fieldPath, entry := range serviceSchema.Fields {
			desc, err := entryToDescriptor(service, fieldPath, entry)
			if err != nil {
				return nil, errors.NewSchemaLoadFailed(path, "invalid field entry", err)
			}
			if err := reg.Register(desc); err != nil {
				return nil, errors.NewSchemaLoadFailed(path, "conflicting field entry", err)
			}
		}
	}
	return reg, nil
}

// checkFieldKeys walks the untyped tree and rejects unknown field-entry keys.
func checkFieldKeys(raw map[string]interface{}) error {
	services, ok := raw["services"].(map[string]interface{})
	if !ok {
		return nil
	}
	for service, serviceRaw := range services {
		serviceMap, ok := serviceRaw.(map[string]interface{})
		if !ok {
			continue
		}
		fields, ok := serviceMap["fields"].(map[string]interface{})
		if !ok {
			continue
		}
		for fieldPath, fieldRaw := range fields {
			fieldMap, ok := fieldRaw.(map[string]interface{})
			if !ok {
				return fmt.Errorf("field %s.%s: entry must be a mapping", service, fieldPath)
			}
			for key := range fieldMap {
				if !knownFieldKeys[key] {
					return fmt.Errorf("field %s.%s: unknown key: %s", service, fieldPath, key)
				}
			}
		}
	}
	return nil
}

// entryToDescriptor resolves a schema file entry into a validated descriptor.
func entryToDescriptor(service, fieldPath string, entry fieldSchemaFile) (FieldDescriptor, error) {
	level, err := resolveLevel(service, fieldPath, entry)
	if err != nil {
		return FieldDescriptor{}, err
	}

	if strings.TrimSpace(entry.Retention) == "" {
		return FieldDescriptor{}, errors.NewInvalidTag(service, fieldPath, "retention policy is required")
	}
	retention, err := classification.ParseRetention(entry.Retention)
	if err != nil {
		return FieldDescriptor{}, errors.NewInvalidTag(service, fieldPath, err.Error())
	}

	desc := FieldDescriptor{
		Service:     service,
		FieldPath:   fieldPath,
		Tag:         Tag{Level: level, Retention: retention},
		Required:    entry.Required,
		Description: entry.Description,
	}
	if err := desc.Validate(); err != nil {
		return FieldDescriptor{}, err
	}
	return desc, nil
}

// resolveLevel reconciles the three ways a schema entry can name its level:
// level, legacy piiLevelName, and legacy numeric piiLevel. Declarations that
// disagree are stale definitions and fail the load.
func resolveLevel(service, fieldPath string, entry fieldSchemaFile) (classification.Level, error) {
	name := entry.Level
	if name == "" {
		name = entry.PIILevelName
	}

	var named classification.Level
	if name != "" {
		parsed, err := classification.ParseLevel(name)
		if err != nil {
			return "", errors.NewInvalidTag(service, fieldPath, err.Error())
		}
		named = parsed
	}

	if entry.PIILevel != nil {
		ranked, err := classification.LevelFromRank(*entry.PIILevel)
		if err != nil {
			return "", errors.NewInvalidTag(service, fieldPath, err.Error())
		}
		if named != "" && named != ranked {
			return "", errors.NewInvalidTag(service, fieldPath,
				fmt.Sprintf("level %s disagrees with piiLevel %d (%s)", named, *entry.PIILevel, ranked))
		}
		return ranked, nil
	}

	if named == "" {
		return "", errors.NewInvalidTag(service, fieldPath, "sensitivity level is required (level or piiLevel)")
	}
	return named, nil
}

// InitSchema writes an example tag schema for the food-app services.
func InitSchema(dir string) (string, error) {
	schemaPath := filepath.Join(dir, "tag-schema.yaml")

	exampleSchema := `# Harper's Kitchen tag schema
# Generated by 'datatags schema init'
# Levels and retention policies: docs/pii-tagging-policy.md

version: 1

services:
  userinfoservice:
    fields:
      userId:
        level: HIGHLY_SENSITIVE
        retention: retain-7-years
        required: true
        description: Primary user identifier
      username:
        level: SENSITIVE
        retention: retain-7-years
        required: true
      userPassword:
        level: CRITICAL
        retention: delete-on-request
        required: true
        description: Must never propagate beyond userinfoservice
      address:
        level: HIGHLY_SENSITIVE
        retention: delete-on-request
      city:
        level: INTERNAL
        retention: retain-indefinite

  orderservice:
    fields:
      userId:
        level: HIGHLY_SENSITIVE
        retention: retain-7-years
        required: true
      orderId:
        level: INTERNAL
        retention: retain-7-years
        required: true
      deliveryAddress:
        level: HIGHLY_SENSITIVE
        retention: retain-1-year

  restaurantservice:
    fields:
      restaurantName:
        level: PUBLIC
        retention: retain-indefinite
        required: true

  paymentservice:
    fields:
      cardNumber:
        level: CRITICAL
        retention: delete-immediately
        required: true
      amount:
        level: INTERNAL
        retention: retain-7-years
`

	if err := os.WriteFile(schemaPath, []byte(exampleSchema), 0644); err != nil {
		return "", fmt.Errorf("failed to write schema file: %w", err)
	}

	return schemaPath, nil
}
