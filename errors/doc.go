// Package errors provides the structured error type shared by every Fintan
// package. Errors carry a machine-readable code so the CLI and the HTTP
// service can tell configuration, wiring and run-time failures apart.
package errors
