// Package config loads the two kinds of configuration Fintan deals with.
//
// Settings are process-level options (logging, stream capacities, registry
// namespaces, fetch retries, metrics). They are read with Viper from an
// optional fintan.yml, an optional .env file and FINTAN_* environment
// variables, e.g. FINTAN_STREAM_CAPACITY=500.
//
// A Document is one pipeline description: the default linear "pipeline",
// independently addressable "components" and explicit "streams". Documents
// are JSON with comments or YAML, and may contain <$paramN> placeholders
// that are replaced before parsing.
package config
