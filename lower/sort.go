// Package lower implements the ordered lowering passes that turn a
// scheduled Fusion's Expression list into a KIR statement tree: symbolic
// size substitution, allocation placement, initialization and predicate
// insertion, index-type lowering, synchronization insertion, circular
// buffer expansion, memory aliasing, and user-registered hooks.
package lower

import (
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

// SortExpressions returns f's expressions in dependency order: an
// expression whose inputs are produced by another expression in f is
// always ordered after its producer. A recursive-descent topological sort
// over Expression input/output tensor edges, the same shape as
// graph.topologicalSort's walk over a Node[T] dependency map but walking
// tensor producer/consumer edges directly instead of a generic graph.
func SortExpressions(f *ir.Fusion) ([]*ir.Expression, error) {
	producedBy := map[*ir.TensorView]*ir.Expression{}
	for _, e := range f.Expressions() {
		for _, out := range e.Outputs() {
			if out.Tensor != nil {
				producedBy[out.Tensor] = e
			}
		}
	}

	var sorted []*ir.Expression
	visited := map[*ir.Expression]bool{}
	onStack := map[*ir.Expression]bool{}

	var visit func(e *ir.Expression) error
	visit = func(e *ir.Expression) error {
		if onStack[e] {
			return fmt.Errorf("cycle detected among fusion expressions: %w", kerr.InvalidInput)
		}
		if visited[e] {
			return nil
		}
		onStack[e] = true
		visited[e] = true

		for _, in := range e.Inputs() {
			if in.Tensor == nil {
				continue
			}
			if dep, ok := producedBy[in.Tensor]; ok {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		sorted = append(sorted, e)
		delete(onStack, e)
		return nil
	}

	for _, e := range f.Expressions() {
		if err := visit(e); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
