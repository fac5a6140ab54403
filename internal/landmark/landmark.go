package landmark

import (
	"context"

	"postureguard/internal/camera"
	"postureguard/internal/posture"
)

// Provider runs pose estimation on one frame. A nil KeypointSet with a nil
// error means no body was found in the frame.
type Provider interface {
	Detect(ctx context.Context, frame *camera.Frame) (*posture.KeypointSet, error)
}

// ProviderFunc lets a plain function act as a Provider.
type ProviderFunc func(ctx context.Context, frame *camera.Frame) (*posture.KeypointSet, error)

func (f ProviderFunc) Detect(ctx context.Context, frame *camera.Frame) (*posture.KeypointSet, error) {
	return f(ctx, frame)
}
