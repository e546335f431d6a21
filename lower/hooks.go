package lower

import "github.com/zerfoo/fusegen/kir"

// Hook is a user-registered lowering pass run after the nine built-in passes,
// in registration order. spec.md 6 describes these as an escape hatch for
// backend-specific rewrites (insert a vendor intrinsic, tag a statement for
// a downstream emitter) that don't belong in the portable pipeline.
type Hook func(stmts []kir.Stmt) ([]kir.Stmt, error)

// RunHooks applies hooks to stmts in order, threading each hook's output
// into the next. An error from any hook stops the chain and is returned
// unwrapped, since a hook is free to use its own sentinel errors.
func RunHooks(stmts []kir.Stmt, hooks []Hook) ([]kir.Stmt, error) {
	for _, h := range hooks {
		var err error
		stmts, err = h(stmts)
		if err != nil {
			return nil, err
		}
	}
	return stmts, nil
}
