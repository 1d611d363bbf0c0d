package persistence

import "context"

type actorKey struct{}

// WithActor returns a context whose writes are attributed to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor set by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

func actorPtr(ctx context.Context) *string {
	if actor, ok := ActorFrom(ctx); ok {
		return &actor
	}
	return nil
}
