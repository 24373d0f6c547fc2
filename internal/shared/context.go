package shared

import "context"

// SocietyContext identifies the tenant a request acts on behalf of. All
// billing and master-data reads and writes are scoped by SocietyID.
type SocietyContext struct {
	ID   int64
	Name string
}

type societyContextKey struct{}

// ContextWithSociety stores the society context.
func ContextWithSociety(ctx context.Context, sc *SocietyContext) context.Context {
	return context.WithValue(ctx, societyContextKey{}, sc)
}

// SocietyFromContext extracts the society context. Returns nil when the
// request never passed through the society middleware.
func SocietyFromContext(ctx context.Context) *SocietyContext {
	sc, _ := ctx.Value(societyContextKey{}).(*SocietyContext)
	return sc
}
