// Package config holds the node configuration and its layered loading:
// defaults, then a YAML file, then LAMPORT_* environment variables
// (optionally from a .env file); command-line flags are applied last by
// the CLI.
package config
