// Package graph builds the workspace dependency graph and derives a
// deterministic, dependency-respecting build order from it.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/masonry-build/masonry/pkg/types"
)

// CycleError reports a dependency cycle. Members holds the names of the
// packages participating in the cycle, sorted ascending.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency between packages: %s",
		strings.Join(e.Members, ", "))
}

// UnknownDependencyError reports a declared dependency that is neither in
// the workspace nor allowed as external.
type UnknownDependencyError struct {
	Package string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("package '%s' depends on '%s' which is not in the workspace",
		e.Package, e.Missing)
}

// DuplicatePackageError reports two packages sharing one name
type DuplicatePackageError struct {
	Name  string
	Paths [2]string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("two packages with the same name '%s' in the workspace:\n- %s\n- %s",
		e.Name, e.Paths[0], e.Paths[1])
}

// UnknownPackageError reports a name that is not a node of the graph
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("package '%s' was not found in the workspace", e.Name)
}

// InconsistentRangeError reports an EndWith package that is ordered
// before the StartWith package, leaving an empty range.
type InconsistentRangeError struct {
	StartWith string
	EndWith   string
}

func (e *InconsistentRangeError) Error() string {
	return fmt.Sprintf("package '%s' (end-with) is ordered before package '%s' (start-with)",
		e.EndWith, e.StartWith)
}

// Options controls graph construction
type Options struct {
	// Strict makes dependencies on names outside the workspace an error
	// instead of treating them as external.
	Strict bool
}

// Graph is the immutable dependency graph of one workspace.
// Nodes are package names, edges are the depends-on relation restricted
// to packages present in the workspace.
type Graph struct {
	descriptors map[string]*types.PackageDescriptor
	deps        map[string]map[string]struct{}
}

// Build constructs and validates a Graph from the given descriptors.
// It fails with DuplicatePackageError, UnknownDependencyError (strict
// mode only) or CycleError.
func Build(descriptors []*types.PackageDescriptor, opts Options) (*Graph, error) {
	g := &Graph{
		descriptors: make(map[string]*types.PackageDescriptor, len(descriptors)),
		deps:        make(map[string]map[string]struct{}, len(descriptors)),
	}
	for _, d := range descriptors {
		if prev, ok := g.descriptors[d.Name]; ok {
			return nil, &DuplicatePackageError{Name: d.Name, Paths: [2]string{prev.Path, d.Path}}
		}
		g.descriptors[d.Name] = d
	}
	for _, d := range descriptors {
		deps := make(map[string]struct{})
		for _, dep := range d.Dependencies {
			if _, ok := g.descriptors[dep]; !ok {
				if opts.Strict {
					return nil, &UnknownDependencyError{Package: d.Name, Missing: dep}
				}
				// external dependency, ignored for ordering
				continue
			}
			if dep != d.Name {
				deps[dep] = struct{}{}
			}
		}
		g.deps[d.Name] = deps
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, cycle
	}
	return g, nil
}

// Names returns all package names, sorted ascending
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.descriptors))
	for name := range g.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the named package is part of the workspace
func (g *Graph) Has(name string) bool {
	_, ok := g.descriptors[name]
	return ok
}

// Descriptor returns the descriptor for the named package
func (g *Graph) Descriptor(name string) (*types.PackageDescriptor, error) {
	d, ok := g.descriptors[name]
	if !ok {
		return nil, &UnknownPackageError{Name: name}
	}
	return d, nil
}

// DependsOn returns the set of transitive in-workspace dependencies of name
func (g *Graph) DependsOn(name string) (map[string]struct{}, error) {
	if !g.Has(name) {
		return nil, &UnknownPackageError{Name: name}
	}
	result := make(map[string]struct{})
	g.collectDeps(name, result)
	return result, nil
}

func (g *Graph) collectDeps(name string, into map[string]struct{}) {
	for dep := range g.deps[name] {
		if _, seen := into[dep]; seen {
			continue
		}
		into[dep] = struct{}{}
		g.collectDeps(dep, into)
	}
}

// Dependents returns the set of packages transitively depending on name
func (g *Graph) Dependents(name string) (map[string]struct{}, error) {
	if !g.Has(name) {
		return nil, &UnknownPackageError{Name: name}
	}
	result := make(map[string]struct{})
	changed := true
	for changed {
		changed = false
		for pkg, deps := range g.deps {
			if _, already := result[pkg]; already {
				continue
			}
			if _, direct := deps[name]; direct {
				result[pkg] = struct{}{}
				changed = true
				continue
			}
			for dep := range deps {
				if _, ok := result[dep]; ok {
					result[pkg] = struct{}{}
					changed = true
					break
				}
			}
		}
	}
	return result, nil
}

// OrderOptions restricts or truncates the topological order
type OrderOptions struct {
	// StartWith drops every package ordered before the named package;
	// earlier packages are assumed to be present from a previous run.
	StartWith string
	// EndWith truncates the order immediately after the named package.
	EndWith string
	// Only restricts the order to the named package and its transitive
	// dependencies.
	Only string
	// Skip removes the named packages from the order.
	Skip []string
}

// TopologicalOrder returns the package names in dependency-respecting
// order. Among packages whose dependencies are all already ordered, names
// are taken ascending, so the result is deterministic.
func (g *Graph) TopologicalOrder(opts OrderOptions) ([]string, error) {
	for _, name := range []string{opts.StartWith, opts.EndWith, opts.Only} {
		if name != "" && !g.Has(name) {
			return nil, &UnknownPackageError{Name: name}
		}
	}
	for _, name := range opts.Skip {
		if !g.Has(name) {
			return nil, &UnknownPackageError{Name: name}
		}
	}

	order := g.kahnOrder()

	if opts.Only != "" {
		keep, err := g.DependsOn(opts.Only)
		if err != nil {
			return nil, err
		}
		keep[opts.Only] = struct{}{}
		restricted := order[:0:0]
		for _, name := range order {
			if _, ok := keep[name]; ok {
				restricted = append(restricted, name)
			}
		}
		order = restricted
	}
	if opts.StartWith != "" {
		for i, name := range order {
			if name == opts.StartWith {
				order = order[i:]
				break
			}
		}
	}
	if opts.EndWith != "" {
		truncated := false
		for i, name := range order {
			if name == opts.EndWith {
				order = order[:i+1]
				truncated = true
				break
			}
		}
		// the StartWith cut already removed everything before it, so a
		// missing EndWith means the range is inverted
		if !truncated {
			return nil, &InconsistentRangeError{
				StartWith: opts.StartWith,
				EndWith:   opts.EndWith,
			}
		}
	}
	if len(opts.Skip) > 0 {
		skip := make(map[string]struct{}, len(opts.Skip))
		for _, name := range opts.Skip {
			skip[name] = struct{}{}
		}
		kept := order[:0:0]
		for _, name := range order {
			if _, ok := skip[name]; !ok {
				kept = append(kept, name)
			}
		}
		order = kept
	}
	return order, nil
}

// kahnOrder computes the full order. Build already rejected cycles, so
// every node is consumed.
func (g *Graph) kahnOrder() []string {
	remaining := make(map[string]map[string]struct{}, len(g.deps))
	for name, deps := range g.deps {
		copied := make(map[string]struct{}, len(deps))
		for dep := range deps {
			copied[dep] = struct{}{}
		}
		remaining[name] = copied
	}

	order := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		ready := make([]string, 0)
		for name, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			break
		}
		sort.Strings(ready)
		// Take only the first candidate; releasing its dependents may
		// change which names are ready next.
		name := ready[0]
		order = append(order, name)
		delete(remaining, name)
		for _, deps := range remaining {
			delete(deps, name)
		}
	}
	return order
}

// findCycle returns a CycleError naming the cycle members, or nil.
// Nodes not consumed by the topological pass form a superset of the
// cycle; the superset is reduced by iteratively dropping nodes nothing
// depends on.
func (g *Graph) findCycle() *CycleError {
	order := g.kahnOrder()
	if len(order) == len(g.deps) {
		return nil
	}
	ordered := make(map[string]struct{}, len(order))
	for _, name := range order {
		ordered[name] = struct{}{}
	}
	leftover := make(map[string]map[string]struct{})
	for name, deps := range g.deps {
		if _, ok := ordered[name]; ok {
			continue
		}
		copied := make(map[string]struct{})
		for dep := range deps {
			if _, ok := ordered[dep]; !ok {
				copied[dep] = struct{}{}
			}
		}
		leftover[name] = copied
	}
	for {
		depended := make(map[string]struct{})
		for _, deps := range leftover {
			for dep := range deps {
				depended[dep] = struct{}{}
			}
		}
		removed := false
		for name := range leftover {
			if _, ok := depended[name]; !ok {
				delete(leftover, name)
				removed = true
			}
		}
		if !removed {
			break
		}
	}
	members := make([]string, 0, len(leftover))
	for name := range leftover {
		members = append(members, name)
	}
	sort.Strings(members)
	return &CycleError{Members: members}
}
