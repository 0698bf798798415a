// Package logging wraps log/slog with the handlers and helpers shared across
// shuttle components.
//
// New builds a logger from explicit options; NewFromConfig derives one from
// application config, teeing output to stdout and the configured log file. Two
// formats are supported: a compact console format that promotes the component
// attribute into the message prefix, and plain JSON for machine consumption.
// The package also exports Attr constructors, standardized field-name
// constants, and WithContext for deriving task/stage/correlation attributes
// from a context.
package logging
