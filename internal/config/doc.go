// Package config loads, normalizes, and validates glossvideo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the GLOSSVIDEO_ROOT environment
// override. The Config value is passed explicitly to every component that
// touches the asset tree so path derivation stays a pure function of entity
// state and configuration.
package config
