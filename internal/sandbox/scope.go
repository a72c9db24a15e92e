package sandbox

// scope is one lexical binding frame in the rewrite walk. Only the
// seven tracked identifiers are ever recorded: boundness of any other
// name is never queried.
type scope struct {
	parent *scope
	names  map[string]struct{}
}

func (s *scope) declare(name string) {
	if _, tracked := CapabilityForIdent(name); !tracked {
		return
	}
	if s.names == nil {
		s.names = make(map[string]struct{}, 2)
	}
	s.names[name] = struct{}{}
}

// bound reports whether name is declared in s or any enclosing frame.
func (s *scope) bound(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.names[name]; ok {
			return true
		}
	}
	return false
}
