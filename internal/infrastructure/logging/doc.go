// Package logging builds the zap logger devbox writes through.
//
// Output is JSON when it goes to a pipe or a file and colored console text
// when it goes to a terminal, unless a format is forced. Development mode
// always uses the console encoder.
//
// Components take the underlying *zap.Logger and name themselves with
// Named ("sandbox", "orchestrator", "ws", ...). Lines about one environment
// carry its id under "environment"; lines about a spawned process come from
// a child named after its role and carry its id under "process".
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Format: logging.FormatAuto})
//	env := logging.WithEnvironment(logger.Named("orchestrator"), envID)
//	logging.ForProcess(env, "install", procID).Info("Process started")
//	defer logger.Close()
package logging
