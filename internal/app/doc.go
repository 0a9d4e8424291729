// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the generation lifecycle: load definitions,
// select descriptors, run the builder, then write the report and metrics.
// It is decoupled from any specific entrypoint like a CLI.
package app
