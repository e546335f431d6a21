package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// IndexTypeLowering implements spec.md 4.9 pass 5: every tensor-indexing
// statement's flat index is retyped from the fusion's default scalar type
// to the kernel-wide index type runtimeinfo.RuntimeInfo.IndexType selects
// (Options.ForceIndexType overrides the automatic int32/int64 choice one
// layer up, in runtimeinfo itself, so this pass only needs to apply
// whatever IndexType already decided).
func IndexTypeLowering(ri *runtimeinfo.RuntimeInfo, indices []*ir.Value) (ir.DataType, error) {
	indexType, err := ri.IndexType()
	if err != nil {
		return ir.Int, err
	}
	for _, v := range indices {
		if v != nil {
			v.SetDType(indexType)
		}
	}
	return indexType, nil
}
