package access

import _ "embed"

// Default model and policy ship with the binary so the matrix works with no
// configuration. A policy CSV path in the config overrides the default.

//go:embed model.conf
var defaultModel string

//go:embed policy.csv
var defaultPolicy string
