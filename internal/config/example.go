package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteExample generates an example configuration file in dir and
// returns its path. Existing files are never overwritten.
func WriteExample(dir string) (string, error) {
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	exampleConfig := `# datatags configuration
# Generated by 'datatags init'

# Gateway URL the CLI talks to.
endpoint: http://localhost:8086

auth:
  token: ""

registry:
  # Tag schema files, merged in order. Conflicting duplicate
  # registrations across files fail the load.
  schemaPaths:
    - tag-schema.yaml
  requiredFieldCheck: false
  snapshotOnLoad: true

storage:
  # postgres for the gateway, sqlite for laptop runs.
  backend: sqlite
  sqlite:
    path: .datatags/datatags.db
  postgres:
    host: localhost
    port: 5432
    user: datatags
    password: datatags_dev
    name: datatags
    sslmode: disable

# Role matrix override. Leave unset to use the built-in matrix.
# access:
#   modelPath: access/model.conf
#   policyPath: access/policy.csv

# Backing store scanners for tag coverage audits.
scanners:
  postgres:
    enabled: false
    service: userinfoservice
    host: localhost
    port: 5432
    user: harpers_kitchen
    password: ""
    name: userinfo
    schema: public
    sslmode: disable
  duckdb:
    enabled: false
    service: orderservice
    database: analytics/orders.duckdb
  snowflake:
    enabled: false
    service: paymentservice
    dsn: ""
    database: HARPERS_KITCHEN
    schema: PAYMENTS
  trino:
    enabled: false
    service: restaurantservice
    dsn: http://datatags@localhost:8080
    catalog: hive
    schema: restaurants
  bigquery:
    enabled: false
    service: foodcatalogservice
    project: harpers-kitchen
    dataset: food_catalog

logging:
  level: info
  format: json

server:
  port: 8086
  readTimeout: 30s
  writeTimeout: 30s
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}
