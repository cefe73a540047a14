package executor

import (
	"regexp"
	"strings"
)

// ErrorKind classifies an error raised during code execution.
type ErrorKind string

const (
	KindMissingDependency ErrorKind = "missing_dependency"
	KindUndefinedName     ErrorKind = "undefined_name"
	KindDataError         ErrorKind = "data_error"
	KindUnknown           ErrorKind = "unknown"
)

// StructuredError is a contained execution error. It is captured and
// returned, never propagated as a Go panic or process failure.
type StructuredError struct {
	Kind    ErrorKind
	Message string
}

func (e *StructuredError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

var (
	missingModuleRe = regexp.MustCompile(`[Cc]annot find module '([^']+)'`)
	undefinedRe     = regexp.MustCompile(`ReferenceError`)
)

// classify maps raw error text onto the error taxonomy. The rules are
// explicit so they stay independently testable.
func classify(msg string) ErrorKind {
	switch {
	case missingModuleRe.MatchString(msg):
		return KindMissingDependency
	case undefinedRe.MatchString(msg) || strings.Contains(msg, "is not defined"):
		return KindUndefinedName
	case strings.Contains(msg, "data error:") || strings.Contains(msg, "TypeError"):
		return KindDataError
	default:
		return KindUnknown
	}
}
