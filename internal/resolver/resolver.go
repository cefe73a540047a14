// Package resolver turns missing-dependency execution errors into
// module installs so the orchestrator can retry the same code once.
package resolver

import (
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/tsagent/internal/executor"
	"github.com/nextlevelbuilder/tsagent/internal/modules"
)

// Resolution is the outcome of a resolve attempt.
type Resolution struct {
	Resolved bool
	Package  string
}

// NotApplicable is returned for anything that is not a recognized
// missing-dependency condition. The resolver never touches logic
// errors.
var NotApplicable = Resolution{}

// Recognized import-error shapes. Kept as an explicit rule set so the
// classifier stays independently testable.
var missRules = []*regexp.Regexp{
	regexp.MustCompile(`[Cc]annot find module '([^']+)'`),
	regexp.MustCompile(`[Mm]odule not found: ['"]([^'"]+)['"]`),
	regexp.MustCompile(`require of unknown module ['"]([^'"]+)['"]`),
}

// Classify extracts an installable module name from raw error text.
// Pure: input text, output package name or "".
func Classify(errText string) string {
	for _, re := range missRules {
		if m := re.FindStringSubmatch(errText); m != nil {
			return m[1]
		}
	}
	return ""
}

// Resolver installs missing modules from a registry. Duplicate
// concurrent requests for the same package are coalesced, never raced.
type Resolver struct {
	registry *modules.Registry
	group    singleflight.Group
}

// New creates a resolver backed by the given module registry.
func New(registry *modules.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve inspects a structured execution error. On a recognized
// missing-dependency condition it installs the inferred package into
// the namespace and signals Resolved; the caller owns the single
// permitted re-execution. Everything else is NotApplicable.
// Idempotent: an already-installed package resolves successfully.
func (r *Resolver) Resolve(ns *executor.Namespace, serr *executor.StructuredError) Resolution {
	if serr == nil || serr.Kind != executor.KindMissingDependency {
		return NotApplicable
	}

	name := Classify(serr.Message)
	if name == "" {
		return NotApplicable
	}
	if !r.registry.Has(name) {
		slog.Warn("no installable package for missing module", "module", name)
		return NotApplicable
	}

	_, err, _ := r.group.Do(name, func() (any, error) {
		if ns.HasModule(name) {
			return nil, nil // already satisfied counts as success
		}
		if err := r.registry.Install(ns, name); err != nil {
			return nil, fmt.Errorf("install %s: %w", name, err)
		}
		return nil, nil
	})
	if err != nil {
		slog.Warn("dependency install failed", "module", name, "error", err)
		return NotApplicable
	}

	slog.Info("dependency resolved", "module", name)
	return Resolution{Resolved: true, Package: name}
}
