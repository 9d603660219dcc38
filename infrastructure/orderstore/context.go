package orderstore

import "context"

type actorKey struct{}

// WithActor tags ctx with the surface initiating a mutation, recorded in
// the audit trail ("admin", "operator", or a handheld device id).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the tagged actor, or "unknown".
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}
