// Package config loads the plugin's YAML configuration: storage location,
// embedding endpoint, and knowledge pool declarations.
package config
