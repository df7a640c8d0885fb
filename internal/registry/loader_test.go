package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
)

func writeSchema(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write schema file: %v", err)
	}
	return path
}

// TestLoader_ValidYAML proves a well-formed YAML schema loads into a
// complete registry.
//
// Green-Flag: Valid schema files MUST load every declared field.
func TestLoader_ValidYAML(t *testing.T) {
	path := writeSchema(t, "tag-schema.yaml", `
version: 1
services:
  userinfoservice:
    fields:
      userId:
        level: HIGHLY_SENSITIVE
        retention: retain-7-years
        required: true
      userPassword:
        level: CRITICAL
        retention: delete-on-request
  restaurantservice:
    fields:
      restaurantName:
        level: PUBLIC
        retention: retain-indefinite
`)

	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("expected schema to load, got error: %v", err)
	}

	if reg.Len() != 3 {
		t.Fatalf("expected 3 fields, got %d", reg.Len())
	}

	tag, err := reg.Lookup("userinfoservice", "userPassword")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if tag.Level != classification.LevelCritical {
		t.Fatalf("expected CRITICAL, got %s", tag.Level)
	}
	if tag.Retention != classification.DeleteOnRequest {
		t.Fatalf("expected delete-on-request, got %s", tag.Retention)
	}

	desc, err := reg.Describe("userinfoservice", "userId")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if !desc.Required {
		t.Fatal("expected userId to be marked required")
	}
}

// TestLoader_LegacyJSON proves the legacy tag_schema.json shape loads:
// numeric piiLevel plus piiLevelName, uppercase retention names.
//
// Green-Flag: Legacy schemas MUST load without modification.
func TestLoader_LegacyJSON(t *testing.T) {
	path := writeSchema(t, "tag_schema.json", `{
  "version": 1,
  "services": {
    "userinfoservice": {
      "fields": {
        "userId": {
          "piiLevel": 3,
          "piiLevelName": "HIGHLY_SENSITIVE",
          "retention": "RETAIN_INDEFINITE",
          "required": true,
          "description": "Primary user identifier"
        }
      }
    }
  }
}`)

	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("expected legacy schema to load, got error: %v", err)
	}

	tag, err := reg.Lookup("userinfoservice", "userId")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if tag.Level != classification.LevelHighlySensitive {
		t.Fatalf("expected HIGHLY_SENSITIVE, got %s", tag.Level)
	}
	if tag.Retention != classification.RetainIndefinite {
		t.Fatalf("expected retain-indefinite, got %s", tag.Retention)
	}
}

// TestLoader_UnknownRetentionRejected proves that a retention value outside
// the fixed set rejects the whole file. The legacy helper would have
// silently defaulted it; the loader must not.
//
// Red-Flag: Unknown retention MUST fail the load with no partial registry.
func TestLoader_UnknownRetentionRejected(t *testing.T) {
	path := writeSchema(t, "tag-schema.yaml", `
version: 1
services:
  userinfoservice:
    fields:
      userId:
        level: HIGHLY_SENSITIVE
        retention: retain-7-years
      username:
        level: SENSITIVE
        retention: keep-forever
`)

	reg, err := registry.Load(path)

	if err == nil {
		t.Fatal("expected load to fail for unknown retention, got nil")
	}
	if _, ok := err.(*errors.ErrSchemaLoadFailed); !ok {
		t.Fatalf("expected ErrSchemaLoadFailed, got %T: %v", err, err)
	}
	if reg != nil {
		t.Fatal("expected no partial registry on load failure")
	}
}

// TestLoader_DisagreeingLevelsRejected proves that an entry whose level name
// and numeric piiLevel disagree is treated as a stale definition.
//
// Red-Flag: Conflicting level declarations MUST fail the load.
func TestLoader_DisagreeingLevelsRejected(t *testing.T) {
	path := writeSchema(t, "tag_schema.json", `{
  "services": {
    "userinfoservice": {
      "fields": {
        "userId": {
          "piiLevel": 1,
          "piiLevelName": "HIGHLY_SENSITIVE",
          "retention": "retain-7-years"
        }
      }
    }
  }
}`)

	if _, err := registry.Load(path); err == nil {
		t.Fatal("expected load to fail for disagreeing level declarations, got nil")
	}
}

// TestLoader_UnknownKeyRejected proves the loader refuses unknown keys in a
// field entry; a typo must not silently drop a policy.
//
// Red-Flag: Unknown schema keys MUST fail the load.
func TestLoader_UnknownKeyRejected(t *testing.T) {
	path := writeSchema(t, "tag-schema.yaml", `
version: 1
services:
  orderservice:
    fields:
      orderId:
        level: INTERNAL
        rentention: retain-7-years
`)

	if _, err := registry.Load(path); err == nil {
		t.Fatal("expected load to fail for unknown key 'rentention', got nil")
	}
}

// TestLoader_MissingLevelRejected proves an entry with neither level nor
// piiLevel fails the load.
//
// Red-Flag: Unclassified fields MUST NOT load.
func TestLoader_MissingLevelRejected(t *testing.T) {
	path := writeSchema(t, "tag-schema.yaml", `
version: 1
services:
  orderservice:
    fields:
      orderId:
        retention: retain-7-years
`)

	if _, err := registry.Load(path); err == nil {
		t.Fatal("expected load to fail for missing level, got nil")
	}
}

// TestLoader_EmptySchemaRejected proves schemas without services are refused.
func TestLoader_EmptySchemaRejected(t *testing.T) {
	path := writeSchema(t, "tag-schema.yaml", "version: 1\n")

	if _, err := registry.Load(path); err == nil {
		t.Fatal("expected load to fail for schema with no services, got nil")
	}
}

// TestLoader_LoadAllConflictRejected proves that two files disagreeing on
// the same field surface as a conflict instead of last-file-wins.
//
// Red-Flag: Cross-file conflicts MUST fail the combined load.
func TestLoader_LoadAllConflictRejected(t *testing.T) {
	first := writeSchema(t, "first.yaml", `
version: 1
services:
  userinfoservice:
    fields:
      userId:
        level: HIGHLY_SENSITIVE
        retention: retain-7-years
`)
	second := writeSchema(t, "second.yaml", `
version: 1
services:
  userinfoservice:
    fields:
      userId:
        level: INTERNAL
        retention: retain-7-years
`)

	if _, err := registry.LoadAll([]string{first, second}); err == nil {
		t.Fatal("expected combined load to fail on conflicting files, got nil")
	}
}

// TestLoader_InitSchemaLoads proves the generated example schema is itself
// a valid schema.
//
// Green-Flag: 'datatags schema init' output MUST load cleanly.
func TestLoader_InitSchemaLoads(t *testing.T) {
	dir := t.TempDir()

	path, err := registry.InitSchema(dir)
	if err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("expected generated schema to load, got error: %v", err)
	}
	if !reg.HasService("userinfoservice") {
		t.Fatal("expected generated schema to cover userinfoservice")
	}
	if !reg.HasField("paymentservice", "cardNumber") {
		t.Fatal("expected generated schema to cover paymentservice.cardNumber")
	}
}
