package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	cameraIDKey  contextKey = "camera_id"
)

// WithSessionID returns a context carrying a monitoring session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithCameraID returns a context carrying a camera id.
func WithCameraID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cameraIDKey, id)
}

// FromContext annotates log with the ids carried by ctx, so every layer
// touched by one session or probe tags its lines the same way.
func FromContext(ctx context.Context, log *zap.SugaredLogger) *zap.SugaredLogger {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		log = log.With("session_id", id)
	}
	if id, ok := ctx.Value(cameraIDKey).(string); ok && id != "" {
		log = log.With("camera_id", id)
	}
	return log
}
