package agent

import "context"

// Broadcaster pushes task sync events to a user's connected clients.
// Delivery is best effort: the engine logs and swallows broadcast errors so
// a flaky socket never fails a chat request.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventType string, payload map[string]any, userID string) error
}

// NopBroadcaster drops every event. Used when no sync hub is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, string, map[string]any, string) error {
	return nil
}
