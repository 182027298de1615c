// Package configs provides embedded configuration templates for recall.
//
// Templates are embedded at build time with //go:embed so they ship in
// every distribution, whether installed from source or as a binary.
// `recall init` writes ConfigTemplate to .recall.yaml, which is then
// picked up by internal/config.Load.
package configs

import _ "embed"

// ConfigTemplate is the annotated starting configuration written by
// `recall init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
