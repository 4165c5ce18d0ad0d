// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a logger configured for the given environment: JSON
// output in prod, console output elsewhere.
func New(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
