// Package logger provides structured logging for Fintan using zerolog.
//
// Logs go to stderr by default so that a pipeline writing its result to
// System.out never interleaves log lines with data.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.WithComponent("loader")
//	log.Info("segment emitted", logger.Fields(logger.FieldStream, "a"))
package logger
