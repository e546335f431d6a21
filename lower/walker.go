package lower

import "github.com/zerfoo/fusegen/kir"

// Walker traverses a lowered statement tree while maintaining an explicit
// scope stack, for passes (debug printing, the CLI's function-trace option)
// that need to know which ForLoop/IfThenElse a statement is nested under
// without threading that context through kir.WalkStmts' plain callback.
type Walker struct {
	scopes []kir.Stmt
}

// Walk visits every statement in stmts depth-first, calling fn with the
// statement and a snapshot of the enclosing scope stack (outermost first).
// The slice passed to fn is reused between calls; callers that need to keep
// it must copy it.
func (w *Walker) Walk(stmts []kir.Stmt, fn func(s kir.Stmt, scopes []kir.Stmt)) {
	for _, s := range stmts {
		fn(s, w.scopes)
		switch s.Kind {
		case kir.StmtForLoop, kir.StmtIfThenElse:
			w.scopes = append(w.scopes, s)
			if s.Kind == kir.StmtForLoop {
				w.Walk(s.Body, fn)
			} else {
				w.Walk(s.Then, fn)
				w.Walk(s.Else, fn)
			}
			w.scopes = w.scopes[:len(w.scopes)-1]
		}
	}
}
