// Package domaingraph implements the ComputeAtMap / IdModel described in
// spec.md 4.2: three disjoint-set graphs over IterDomains (Exact,
// Permissive, Loop) used by the scheduler primitives and the heuristic
// registry's structural gates.
//
// The disjoint sets are backed by github.com/katalvlaran/lvlath/core.Graph,
// the same undirected adjacency-list graph the retrieval pack's lvlath
// library uses for its MST and traversal algorithms: an "IDs mapped under
// mode M" equivalence class is exactly a connected component of the mode-M
// graph, so areMapped(a,b,mode) is "are a and b in the same BFS component",
// computed with lvlath/algorithms.BFS rather than a hand-rolled union-find.
// The weakly-connected check the heuristic registry needs (spec.md 4.4,
// "graph not weakly connected" hard rejection) is the same BFS run over the
// whole-fusion dependency graph in heuristic.Registry.
package domaingraph

import (
	"fmt"
	"strconv"

	"github.com/katalvlaran/lvlath/algorithms"
	"github.com/katalvlaran/lvlath/core"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

// MapMode selects which equivalence the IdModel is asked about.
type MapMode int

const (
	// Exact maps IDs only when extent and transform history are
	// structurally identical across tensors.
	Exact MapMode = iota
	// Permissive maps as Exact, but additionally maps a non-concretized
	// broadcast ID with any ID it could broadcast to.
	Permissive
	// Loop maps IDs that share the same physical loop iteration after
	// inlining.
	Loop
)

// IdModel holds the Exact/Permissive/Loop disjoint-set graphs for every
// IterDomain in a Fusion.
type IdModel struct {
	fusion *ir.Fusion

	exact      *core.Graph
	permissive *core.Graph
	loop       *core.Graph

	selfMappingPermitted map[*ir.IterDomain]bool
}

func key(d *ir.IterDomain) string { return strconv.FormatUint(uint64(d.ID()), 10) }

func newVertexGraph(ids []*ir.IterDomain) *core.Graph {
	g := core.NewGraph()
	for _, d := range ids {
		_ = g.AddVertex(key(d))
	}
	return g
}

func addEdge(g *core.Graph, a, b *ir.IterDomain) {
	if a == b {
		return
	}
	_, _ = g.AddEdge(key(a), key(b), 0)
}

// Build constructs the Exact and Permissive graphs for every Expression and
// IdExpr in f. The Loop graph starts empty; scheduler primitive computeAt/
// inlineAt populates it (see schedule.ComputeAt) by calling MapLoop.
// selfMappingPermitted lists specific (same-tensor, distinct-ID) pairs that
// are allowed to be Exact-mapped to each other despite spec.md 4.2's
// self-mapping rejection rule (an explicit escape hatch some schedules such
// as a gather's index tensor legitimately need).
func Build(f *ir.Fusion, selfMappingPermitted map[*ir.IterDomain]bool) (*IdModel, error) {
	ids := f.IterDomains()
	m := &IdModel{
		fusion:               f,
		exact:                newVertexGraph(ids),
		permissive:           newVertexGraph(ids),
		loop:                 newVertexGraph(ids),
		selfMappingPermitted: selfMappingPermitted,
	}

	// IdExpr transform history: a Split/Merge/Swizzle/Resize's inputs and
	// outputs are always Exact-mapped to the *other tensor's* corresponding
	// nodes once the root correspondence is known, but within a single
	// tensor, Split/Merge never create a mapping between distinct IDs of
	// that tensor (that would be a self-mapping). IdExprs therefore do not
	// contribute edges to the Exact graph directly; they define the
	// transform history that RootMapping's structural-identity claim
	// depends on, which this simplified builder takes as given.

	for _, e := range f.Expressions() {
		if err := m.applyRootMap(e); err != nil {
			return nil, err
		}
		if err := m.applyOperandMap(e); err != nil {
			return nil, err
		}
	}

	if err := m.checkNoSelfMapping(); err != nil {
		return nil, err
	}

	return m, nil
}

func tensorAt(e *ir.Expression, operand int) *ir.TensorView {
	ins := e.Inputs()
	if operand < 0 || operand >= len(ins) {
		return nil
	}
	return ins[operand].Tensor
}

func outputTensor(e *ir.Expression, idx int) *ir.TensorView {
	outs := e.Outputs()
	for _, o := range outs {
		if o.Tensor != nil {
			return o.Tensor
		}
	}
	_ = idx
	return nil
}

func (m *IdModel) applyRootMap(e *ir.Expression) error {
	rm := e.RootMap()
	if rm == nil {
		return nil
	}
	out := outputTensor(e, 0)
	if out == nil {
		return nil
	}
	outRoot := out.Domain().Root()
	for _, pair := range rm {
		in := tensorAt(e, pair.InputOperand)
		if in == nil || pair.OutputIdx >= len(outRoot) {
			continue
		}
		inLogical := in.Domain().Logical()
		if pair.InputIdx >= len(inLogical) {
			continue
		}
		a, b := outRoot[pair.OutputIdx], inLogical[pair.InputIdx]
		addEdge(m.permissive, a, b)
		if pair.Exact {
			addEdge(m.exact, a, b)
		}
	}
	return nil
}

func (m *IdModel) applyOperandMap(e *ir.Expression) error {
	for _, pair := range e.OperandMap() {
		a := tensorAt(e, pair.OperandA)
		b := tensorAt(e, pair.OperandB)
		if a == nil || b == nil {
			continue
		}
		al, bl := a.Domain().Logical(), b.Domain().Logical()
		if pair.IdxA >= len(al) || pair.IdxB >= len(bl) {
			continue
		}
		addEdge(m.exact, al[pair.IdxA], bl[pair.IdxB])
		addEdge(m.permissive, al[pair.IdxA], bl[pair.IdxB])
	}
	return nil
}

// checkNoSelfMapping rejects at build time any Exact-mapping between two
// distinct IDs of the same TensorView, unless explicitly permitted
// (spec.md 4.2: "Self-mapping between two distinct IDs of the same tensor
// is an error and rejected at graph-build time, unless explicitly
// permitted").
func (m *IdModel) checkNoSelfMapping() error {
	for _, tv := range m.fusion.TensorViews() {
		all := allDomainIDs(tv)
		for i := 0; i < len(all); i++ {
			for j := i + 1; j < len(all); j++ {
				a, b := all[i], all[j]
				if a == b {
					continue
				}
				if m.selfMappingPermitted[a] || m.selfMappingPermitted[b] {
					continue
				}
				mapped, err := m.AreMapped(a, b, Exact)
				if err != nil {
					return err
				}
				if mapped {
					return fmt.Errorf("self-mapping detected on tensor %q between two distinct IDs: %w", tv.Name(), kerr.InvalidInput)
				}
			}
		}
	}
	return nil
}

func allDomainIDs(tv *ir.TensorView) []*ir.IterDomain {
	d := tv.Domain()
	seen := map[*ir.IterDomain]bool{}
	var out []*ir.IterDomain
	add := func(ids []*ir.IterDomain) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(d.Root())
	add(d.Logical())
	add(d.Allocation())
	add(d.Loop())
	add(d.AdditionalIDs())
	return out
}

func graphFor(m *IdModel, mode MapMode) *core.Graph {
	switch mode {
	case Exact:
		return m.exact
	case Permissive:
		return m.permissive
	default:
		return m.loop
	}
}

// AreMapped reports whether a and b are in the same equivalence class under
// mode. It is reflexive, symmetric and transitive by construction (BFS
// connectivity in an undirected graph).
func (m *IdModel) AreMapped(a, b *ir.IterDomain, mode MapMode) (bool, error) {
	if a == b {
		return true, nil
	}
	g := graphFor(m, mode)
	ka, kb := key(a), key(b)
	if !g.HasVertex(ka) || !g.HasVertex(kb) {
		return false, nil
	}
	res, err := algorithms.BFS(g, ka, nil)
	if err != nil {
		return false, fmt.Errorf("idmodel bfs: %w", err)
	}
	return res.Visited[kb], nil
}

// MapLoop records that a and b share the same physical loop iteration,
// called by the scheduler's computeAt/inlineAt once an axis is inlined.
func (m *IdModel) MapLoop(a, b *ir.IterDomain) {
	addEdge(m.loop, a, b)
}

// MapExact records an additional Exact correspondence discovered outside
// the root-map walk (used by rFactor, which needs to map its
// partial-reduction producer's IDs back to the original reduction's IDs).
func (m *IdModel) MapExact(a, b *ir.IterDomain) {
	addEdge(m.exact, a, b)
	addEdge(m.permissive, a, b)
}

// WeaklyConnected reports whether the whole fusion's dependency graph
// (tensors as vertices, an edge from each expression input to each of its
// outputs) is a single connected component -- the heuristic
// registry's hard-rejection gate (spec.md 4.4).
func WeaklyConnected(f *ir.Fusion) (bool, error) {
	g := core.NewGraph()
	for _, tv := range f.TensorViews() {
		_ = g.AddVertex(tvKey(tv))
	}
	for _, e := range f.Expressions() {
		outs := e.Outputs()
		for _, in := range e.Inputs() {
			if in.Tensor == nil {
				continue
			}
			for _, out := range outs {
				if out.Tensor == nil {
					continue
				}
				_, _ = g.AddEdge(tvKey(in.Tensor), tvKey(out.Tensor), 0)
			}
		}
	}

	vertices := g.Vertices()
	if len(vertices) <= 1 {
		return true, nil
	}
	res, err := algorithms.BFS(g, vertices[0], nil)
	if err != nil {
		return false, fmt.Errorf("weakly-connected bfs: %w", err)
	}
	return len(res.Order) == len(vertices), nil
}

func tvKey(tv *ir.TensorView) string { return strconv.FormatUint(uint64(tv.ID()), 10) }
