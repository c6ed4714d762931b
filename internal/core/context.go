package core

import "context"

type contextKey string

const ctxKeyChannel contextKey = "ingest_channel"

// Input channels a file can arrive through.
const (
	ChannelDrop  = "drop"
	ChannelPaste = "paste"
	ChannelAPI   = "api"
	ChannelCLI   = "cli"
)

// ContextWithChannel records which input channel a file arrived through.
func ContextWithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxKeyChannel, channel)
}

// ChannelFromContext returns the input channel, or "" if none was recorded.
func ChannelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyChannel).(string); ok {
		return v
	}
	return ""
}
