package lower

import (
	"fmt"

	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
)

// ReplaceSymbolicSizes implements spec.md 4.9 pass 1: every symbolic (not a
// compile-time literal) extent in the fusion is named after the input
// tensor metadata expression it is Exact-mapped to
// ("metadata(T).logical_size[i]"), so an intermediate tensor whose shape is
// structurally identical to an input's never carries its own redundant
// size symbol in the emitted kernel. Returns the substitution map from the
// original extent Value to the canonical metadata Value it now shares.
func ReplaceSymbolicSizes(f *ir.Fusion, idm *domaingraph.IdModel) (map[*ir.Value]*ir.Value, error) {
	subst := map[*ir.Value]*ir.Value{}

	inputRoots := map[*ir.IterDomain]string{}
	for _, in := range f.Inputs() {
		if in.Tensor == nil {
			continue
		}
		name := in.Tensor.Name()
		if name == "" {
			name = fmt.Sprintf("T%d", in.Tensor.ID())
		}
		for i, d := range in.Tensor.Domain().Root() {
			inputRoots[d] = fmt.Sprintf("metadata(%s).logical_size[%d]", name, i)
		}
	}

	for _, tv := range f.TensorViews() {
		for _, d := range tv.Domain().Root() {
			if d.Extent().IsConst() {
				continue
			}
			if _, already := inputRoots[d]; already {
				continue
			}
			for inputID, label := range inputRoots {
				mapped, err := idm.AreMapped(d, inputID, domaingraph.Exact)
				if err != nil {
					return nil, err
				}
				if mapped {
					canon := ir.NewSymbolicValue(f, d.Extent().DType())
					canon.SetName(label)
					subst[d.Extent()] = canon
					break
				}
			}
		}
	}
	return subst, nil
}
