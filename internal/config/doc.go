// Package config loads, normalizes, and validates shuttle's TOML
// configuration.
//
// Load resolves the config path (explicit flag, ~/.config/shuttle/config.toml,
// or ./shuttle.toml), decodes it over the Default() values, expands ~ in path
// fields, pulls credentials from the environment when unset, and validates the
// result. WriteSample materializes the embedded sample config for
// 'shuttle config init'.
package config
