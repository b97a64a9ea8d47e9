package sale

// AdminGate checks caller identities against an injected operator
// allow-list. Every configuration-mutating operation passes through it;
// deposits and withdrawals do not.
type AdminGate struct {
	operators map[[20]byte]struct{}
}

// NewAdminGate constructs a gate from the supplied operator identities.
func NewAdminGate(operators [][20]byte) *AdminGate {
	gate := &AdminGate{operators: make(map[[20]byte]struct{}, len(operators))}
	for _, op := range operators {
		gate.operators[op] = struct{}{}
	}
	return gate
}

// Authorize returns ErrUnauthorized unless the caller is a listed operator.
func (g *AdminGate) Authorize(caller [20]byte) error {
	if g == nil {
		return ErrUnauthorized
	}
	if _, ok := g.operators[caller]; !ok {
		return ErrUnauthorized
	}
	return nil
}
