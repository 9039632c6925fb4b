// Package ftio is the predictor's stderr logger, kept deliberately tiny:
// a couple of Fprintf wrappers rather than a structured logging
// dependency.
package ftio

import (
	"fmt"
	"os"
)

// Infof writes a informational line to stderr.
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Warnf writes a warning line to stderr.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warn: "+format+"\n", args...)
}
