// Package executor runs generated JavaScript against a persistent
// per-session namespace and captures output, produced artifacts, and
// contained errors.
package executor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// ProducedArtifact is a result recorded during one execution.
type ProducedArtifact struct {
	Name     string
	Kind     session.ArtifactKind
	ValueRef string
}

// Namespace is the live binding environment generated code runs
// against. Bindings, loaded modules, and artifact values survive
// across turns within a session. A namespace belongs to exactly one
// session and is never shared.
type Namespace struct {
	mu      sync.Mutex
	rt      *goja.Runtime
	workDir string

	modules map[string]goja.Value // loaded module exports, by name
	values  map[string]goja.Value // artifact values, by artifact name

	// per-run capture, reset at the start of each Run
	out      strings.Builder
	produced []ProducedArtifact
	files    []string
}

// NewNamespace creates a fresh namespace writing file outputs under
// workDir. The console, require, and artifacts globals are installed
// up front; domain modules load through the module registry.
func NewNamespace(workDir string) *Namespace {
	n := &Namespace{
		rt:      goja.New(),
		workDir: workDir,
		modules: make(map[string]goja.Value),
		values:  make(map[string]goja.Value),
	}
	n.installGlobals()
	return n
}

// Runtime exposes the underlying goja runtime to module loaders.
func (n *Namespace) Runtime() *goja.Runtime { return n.rt }

// WorkDir is the directory file-producing modules write into.
func (n *Namespace) WorkDir() string { return n.workDir }

func (n *Namespace) installGlobals() {
	console := n.rt.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		n.out.WriteString(strings.Join(parts, " "))
		n.out.WriteString("\n")
		return goja.Undefined()
	}
	console.Set("log", log)
	console.Set("error", log)
	n.rt.Set("console", console)

	n.rt.Set("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if mod, ok := n.modules[name]; ok {
			return mod
		}
		panic(n.rt.NewGoError(fmt.Errorf("Cannot find module '%s'", name)))
	})

	// Artifact names are normalized on both put and get so the
	// namespace, the session artifact map, and the names advertised in
	// prompts always agree.
	artifacts := n.rt.NewObject()
	artifacts.Set("get", func(call goja.FunctionCall) goja.Value {
		name := dataset.NormalizeName(call.Argument(0).String())
		if v, ok := n.values[name]; ok {
			return v
		}
		panic(n.rt.NewGoError(fmt.Errorf("ReferenceError: artifact %s is not defined", name)))
	})
	artifacts.Set("put", func(call goja.FunctionCall) goja.Value {
		name := dataset.NormalizeName(call.Argument(0).String())
		kind := session.ArtifactKind(call.Argument(1).String())
		value := call.Argument(2)
		n.values[name] = value
		n.produced = append(n.produced, ProducedArtifact{Name: name, Kind: kind})
		return goja.Undefined()
	})
	artifacts.Set("list", func(call goja.FunctionCall) goja.Value {
		names := make([]string, 0, len(n.values))
		for name := range n.values {
			names = append(names, name)
		}
		return n.rt.ToValue(names)
	})
	n.rt.Set("artifacts", artifacts)
}

// Bind registers a Go value (e.g. a loaded frame wrapper) under name,
// both as a global and in the artifact value map.
func (n *Namespace) Bind(name string, value goja.Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[name] = value
	n.rt.Set(name, value)
}

// Has reports whether name resolves in the namespace.
func (n *Namespace) Has(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.values[name]; ok {
		return true
	}
	return n.rt.GlobalObject().Get(name) != nil
}

// HasModule reports whether a module is already loaded. Loading twice
// is not an error; the second install is a no-op.
func (n *Namespace) HasModule(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.modules[name]
	return ok
}

// SetModule stores module exports under name, making require(name)
// resolve from now on.
func (n *Namespace) SetModule(name string, exports goja.Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modules[name] = exports
}

// RecordArtifact notes an artifact produced by a host module during
// the current run.
func (n *Namespace) RecordArtifact(name string, kind session.ArtifactKind, ref string) {
	n.produced = append(n.produced, ProducedArtifact{Name: name, Kind: kind, ValueRef: ref})
}

// RecordFile notes a file written by a host module during the current
// run. Feeds the empty-result heuristic.
func (n *Namespace) RecordFile(path string) {
	n.files = append(n.files, path)
}

// Print appends to the captured output of the current run.
func (n *Namespace) Print(s string) {
	n.out.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		n.out.WriteString("\n")
	}
}

func (n *Namespace) resetRun() {
	n.out.Reset()
	n.produced = nil
	n.files = nil
}
