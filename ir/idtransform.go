package ir

import "fmt"

// CeilDiv returns ceil(a/b) for two int64 literal extents.
func CeilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Split replaces id with two new IterDomains whose extents multiply back to
// id's extent: (outer = ceilDiv(extent, factor), inner = factor) when
// innerSplit is true (factor-sized axis is placed inner), or the mirror
// arrangement otherwise. The split is recorded as non-divisible (Divisible
// == false) unless both extent and factor are compile-time literals and
// extent % factor == 0 -- a provably-non-divisible or only-provable-at-
// runtime split is always conservatively treated as non-divisible so the
// predicate-insertion pass (spec.md 4.9 item 4) knows to guard it.
func Split(f *Fusion, id *IterDomain, factor *Value, innerSplit bool) (outer, inner *IterDomain, err error) {
	if id.fusion != f || factor.fusion != f {
		return nil, nil, fmt.Errorf("split operands from a different fusion: %w", errInvalidInput)
	}

	divisible := false
	if id.extent.IsConst() && factor.IsConst() && factor.Int() != 0 {
		divisible = id.extent.Int()%factor.Int() == 0
	}

	outerExtent := NewSymbolicValue(f, Index)
	innerExtent := factor

	if id.extent.IsConst() && factor.IsConst() {
		outerExtent = NewIntConst(f, CeilDiv(id.extent.Int(), factor.Int()))
	}

	mkID := func(extent *Value) *IterDomain {
		d := &IterDomain{id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: extent, iterType: id.iterType, isBroadcast: id.isBroadcast}
		f.ids = append(f.ids, d)
		return d
	}

	outer = mkID(outerExtent)
	inner = mkID(innerExtent)

	expr := &IdExpr{
		id:         f.own(),
		fusion:     f,
		kind:       SplitExpr,
		inputs:     []*IterDomain{id},
		innerSplit: innerSplit,
		divisible:  divisible,
		factor:     factor,
	}
	if innerSplit {
		expr.outputs = []*IterDomain{outer, inner}
	} else {
		expr.outputs = []*IterDomain{inner, outer}
	}
	outer.definition = expr
	inner.definition = expr
	f.idExprs = append(f.idExprs, expr)

	return outer, inner, nil
}

// Merge concatenates two adjacent axes into one whose extent is their
// product. Merging two broadcast IDs yields a broadcast ID.
func Merge(f *Fusion, outer, inner *IterDomain) (*IterDomain, error) {
	if outer.fusion != f || inner.fusion != f {
		return nil, fmt.Errorf("merge operands from a different fusion: %w", errInvalidInput)
	}

	var extent *Value
	if outer.extent.IsConst() && inner.extent.IsConst() {
		extent = NewIntConst(f, outer.extent.Int()*inner.extent.Int())
	} else {
		extent = NewSymbolicValue(f, Index)
	}

	iterType := outer.iterType
	isBroadcast := outer.isBroadcast && inner.isBroadcast
	if outer.iterType == Reduction || inner.iterType == Reduction {
		iterType = Reduction
	}

	merged := &IterDomain{
		id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: extent,
		iterType: iterType, isBroadcast: isBroadcast,
	}
	f.ids = append(f.ids, merged)

	expr := &IdExpr{
		id: f.own(), fusion: f, kind: MergeExpr,
		inputs: []*IterDomain{outer, inner}, outputs: []*IterDomain{merged},
	}
	merged.definition = expr
	f.idExprs = append(f.idExprs, expr)

	return merged, nil
}

// Swizzle1D inserts a single-axis swizzle node of the given type and mode.
func Swizzle1D(f *Fusion, id *IterDomain, t SwizzleType, mode SwizzleMode) (*IterDomain, error) {
	if id.fusion != f {
		return nil, fmt.Errorf("swizzle operand from a different fusion: %w", errInvalidInput)
	}
	out := &IterDomain{id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: id.extent, iterType: id.iterType}
	f.ids = append(f.ids, out)
	expr := &IdExpr{id: f.own(), fusion: f, kind: SwizzleExpr, inputs: []*IterDomain{id}, outputs: []*IterDomain{out}, swizzleType: t, swizzleMode: mode}
	out.definition = expr
	f.idExprs = append(f.idExprs, expr)
	return out, nil
}

// Swizzle2D inserts a two-axis swizzle node, producing replacement IDs for
// both x and y with the same extents.
func Swizzle2D(f *Fusion, x, y *IterDomain, t SwizzleType, mode SwizzleMode) (x2, y2 *IterDomain, err error) {
	if x.fusion != f || y.fusion != f {
		return nil, nil, fmt.Errorf("swizzle2D operands from a different fusion: %w", errInvalidInput)
	}
	x2 = &IterDomain{id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: x.extent, iterType: x.iterType}
	y2 = &IterDomain{id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: y.extent, iterType: y.iterType}
	f.ids = append(f.ids, x2, y2)
	expr := &IdExpr{id: f.own(), fusion: f, kind: Swizzle2DExpr, inputs: []*IterDomain{x, y}, outputs: []*IterDomain{x2, y2}, swizzleType: t, swizzleMode: mode}
	x2.definition = expr
	y2.definition = expr
	f.idExprs = append(f.idExprs, expr)
	return x2, y2, nil
}

// Resize expands (or contracts, with a negative amount) id by left on the
// low side and right on the high side.
func Resize(f *Fusion, id *IterDomain, left, right *Value) (*IterDomain, error) {
	if id.fusion != f || left.fusion != f || right.fusion != f {
		return nil, fmt.Errorf("resize operands from a different fusion: %w", errInvalidInput)
	}

	var extent *Value
	if id.extent.IsConst() && left.IsConst() && right.IsConst() {
		extent = NewIntConst(f, id.extent.Int()+left.Int()+right.Int())
	} else {
		extent = NewSymbolicValue(f, Index)
	}

	out := &IterDomain{id: f.own(), fusion: f, start: NewIntConst(f, 0), extent: extent, iterType: Iteration}
	f.ids = append(f.ids, out)
	expr := &IdExpr{id: f.own(), fusion: f, kind: ResizeExpr, inputs: []*IterDomain{id}, outputs: []*IterDomain{out}, leftExpand: left, rightExpand: right}
	out.definition = expr
	f.idExprs = append(f.idExprs, expr)
	return out, nil
}

// Ancestors returns the set of IterDomains reachable by walking Definition
// backward from the given starting IDs, including the starting IDs
// themselves. Used by TensorDomain validation (spec.md "Invariant
// (decoupled domains)") to check that two designated domains are each
// other's forward/backward transform closure.
func Ancestors(ids []*IterDomain) map[*IterDomain]bool {
	seen := map[*IterDomain]bool{}
	var walk func(*IterDomain)
	walk = func(d *IterDomain) {
		if seen[d] {
			return
		}
		seen[d] = true
		if d.definition != nil {
			for _, in := range d.definition.inputs {
				walk(in)
			}
		}
	}
	for _, d := range ids {
		walk(d)
	}
	return seen
}

// Descendants returns every IterDomain reachable by following IdExpr
// outputs forward from the given starting IDs, including the starting IDs
// themselves. all is the universe of IdExprs to search (typically
// Fusion.idExprs); it is passed explicitly because IterDomain does not keep
// a back-pointer to its uses.
func Descendants(ids []*IterDomain, all []*IdExpr) map[*IterDomain]bool {
	seen := map[*IterDomain]bool{}
	for _, d := range ids {
		seen[d] = true
	}
	changed := true
	for changed {
		changed = false
		for _, e := range all {
			anyIn := false
			for _, in := range e.inputs {
				if seen[in] {
					anyIn = true
					break
				}
			}
			if !anyIn {
				continue
			}
			for _, out := range e.outputs {
				if !seen[out] {
					seen[out] = true
					changed = true
				}
			}
		}
	}
	return seen
}
