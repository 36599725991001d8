// Package templates embeds the default configuration and schema files.
package templates

import "embed"

//go:embed config.yaml schema
var FS embed.FS
