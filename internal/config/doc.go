// Package config loads, validates, and defaults reelsmith's TOML
// configuration.
package config
