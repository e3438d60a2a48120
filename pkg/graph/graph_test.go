package graph_test

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/types"
)

func pkg(name string, deps ...string) *types.PackageDescriptor {
	return &types.PackageDescriptor{
		Name:         name,
		Version:      "0.1.0",
		BuildType:    "cmake",
		Dependencies: deps,
		Path:         name,
	}
}

// diamond: A <- B, A <- C, B+C <- D
func diamond() []*types.PackageDescriptor {
	return []*types.PackageDescriptor{
		pkg("a"),
		pkg("b", "a"),
		pkg("c", "a"),
		pkg("d", "b", "c"),
	}
}

func mustBuild(t *testing.T, descs []*types.PackageDescriptor) *graph.Graph {
	t.Helper()
	g, err := graph.Build(descs, graph.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func TestTopologicalOrder_Diamond(t *testing.T) {
	g := mustBuild(t, diamond())

	order, err := g.TopologicalOrder(graph.OrderOptions{})
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	descs := []*types.PackageDescriptor{
		pkg("zeta"), pkg("alpha"), pkg("mid", "zeta", "alpha"), pkg("omega", "mid"),
	}
	g := mustBuild(t, descs)

	first, _ := g.TopologicalOrder(graph.OrderOptions{})
	for i := 0; i < 10; i++ {
		again, _ := g.TopologicalOrder(graph.OrderOptions{})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("order not deterministic: %v vs %v", first, again)
		}
	}
	if !reflect.DeepEqual(first, []string{"alpha", "zeta", "mid", "omega"}) {
		t.Errorf("order = %v", first)
	}
}

func TestTopologicalOrder_RespectsDependencies(t *testing.T) {
	g := mustBuild(t, diamond())
	order, _ := g.TopologicalOrder(graph.OrderOptions{})

	position := map[string]int{}
	for i, name := range order {
		position[name] = i
	}
	for _, tc := range []struct{ dep, pkg string }{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"},
	} {
		if position[tc.dep] >= position[tc.pkg] {
			t.Errorf("%s ordered at %d, after dependent %s at %d",
				tc.dep, position[tc.dep], tc.pkg, position[tc.pkg])
		}
	}
}

func TestTopologicalOrder_EndWith(t *testing.T) {
	g := mustBuild(t, diamond())

	order, err := g.TopologicalOrder(graph.OrderOptions{EndWith: "b"})
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	if order[len(order)-1] != "b" {
		t.Errorf("order = %v, want to end at b", order)
	}
	for _, name := range order {
		if name == "c" || name == "d" {
			t.Errorf("order %v contains %s after end-with b", order, name)
		}
	}
}

func TestTopologicalOrder_StartWith(t *testing.T) {
	g := mustBuild(t, diamond())

	order, err := g.TopologicalOrder(graph.OrderOptions{StartWith: "b"})
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	if order[0] != "b" {
		t.Errorf("order = %v, want to start at b", order)
	}
	for _, name := range order {
		if name == "a" {
			t.Errorf("order %v still contains a", order)
		}
	}
}

func TestTopologicalOrder_InvertedRange(t *testing.T) {
	g := mustBuild(t, diamond())

	// b is ordered after its dependency a, so ending at a cannot work
	_, err := g.TopologicalOrder(graph.OrderOptions{StartWith: "b", EndWith: "a"})
	var badRange *graph.InconsistentRangeError
	if !errors.As(err, &badRange) {
		t.Fatalf("error = %v, want InconsistentRangeError", err)
	}
	if badRange.StartWith != "b" || badRange.EndWith != "a" {
		t.Errorf("range = %s..%s, want b..a", badRange.StartWith, badRange.EndWith)
	}
}

func TestTopologicalOrder_Only(t *testing.T) {
	g := mustBuild(t, diamond())

	order, err := g.TopologicalOrder(graph.OrderOptions{Only: "b"})
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestTopologicalOrder_Skip(t *testing.T) {
	g := mustBuild(t, diamond())

	order, err := g.TopologicalOrder(graph.OrderOptions{Skip: []string{"c"}})
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "d"}) {
		t.Errorf("order = %v, want [a b d]", order)
	}
}

func TestTopologicalOrder_UnknownName(t *testing.T) {
	g := mustBuild(t, diamond())

	_, err := g.TopologicalOrder(graph.OrderOptions{StartWith: "nope"})
	var unknown *graph.UnknownPackageError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownPackageError", err)
	}
}

func TestBuild_Cycle(t *testing.T) {
	descs := diamond()
	// close the loop: a also depends on d
	descs[0].Dependencies = []string{"d"}

	_, err := graph.Build(descs, graph.Options{})
	var cycle *graph.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Build() error = %v, want CycleError", err)
	}
	members := map[string]bool{}
	for _, m := range cycle.Members {
		members[m] = true
	}
	if !members["a"] || !members["d"] {
		t.Errorf("cycle members = %v, want to contain a and d", cycle.Members)
	}
	if !members["b"] && !members["c"] {
		t.Errorf("cycle members = %v, want at least one of b, c on the path", cycle.Members)
	}
}

func TestBuild_TwoCycle(t *testing.T) {
	_, err := graph.Build([]*types.PackageDescriptor{
		pkg("x", "y"), pkg("y", "x"), pkg("z"),
	}, graph.Options{})
	var cycle *graph.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Build() error = %v, want CycleError", err)
	}
	if !reflect.DeepEqual(cycle.Members, []string{"x", "y"}) {
		t.Errorf("cycle members = %v, want exactly [x y]", cycle.Members)
	}
}

func TestBuild_DuplicateName(t *testing.T) {
	a := pkg("same")
	b := pkg("same")
	b.Path = "elsewhere/same"

	_, err := graph.Build([]*types.PackageDescriptor{a, b}, graph.Options{})
	var dup *graph.DuplicatePackageError
	if !errors.As(err, &dup) {
		t.Fatalf("Build() error = %v, want DuplicatePackageError", err)
	}
}

func TestBuild_ExternalDependencies(t *testing.T) {
	g, err := graph.Build([]*types.PackageDescriptor{
		pkg("standalone", "libfoo-dev"),
	}, graph.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v, external deps should be ignored", err)
	}
	order, _ := g.TopologicalOrder(graph.OrderOptions{})
	if !reflect.DeepEqual(order, []string{"standalone"}) {
		t.Errorf("order = %v", order)
	}
}

func TestBuild_StrictUnknownDependency(t *testing.T) {
	_, err := graph.Build([]*types.PackageDescriptor{
		pkg("standalone", "libfoo-dev"),
	}, graph.Options{Strict: true})
	var unknown *graph.UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("Build() error = %v, want UnknownDependencyError", err)
	}
	if unknown.Package != "standalone" || unknown.Missing != "libfoo-dev" {
		t.Errorf("error fields = %+v", unknown)
	}
}

func TestDependsOn(t *testing.T) {
	g := mustBuild(t, diamond())

	deps, err := g.DependsOn("d")
	if err != nil {
		t.Fatalf("DependsOn() error = %v", err)
	}
	got := make([]string, 0, len(deps))
	for name := range deps {
		got = append(got, name)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("DependsOn(d) = %v", got)
	}
}

func TestDependents(t *testing.T) {
	g := mustBuild(t, diamond())

	deps, err := g.Dependents("a")
	if err != nil {
		t.Fatalf("Dependents() error = %v", err)
	}
	got := make([]string, 0, len(deps))
	for name := range deps {
		got = append(got, name)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("Dependents(a) = %v", got)
	}
}
