package manager

import (
	"context"
	"time"

	"comfyd/internal/backend"
)

// Backend is the generation server as seen by the manager. *backend.Client
// satisfies it through FromClient.
type Backend interface {
	Submit(ctx context.Context, graph backend.Graph, clientID string) (string, error)
	Status(ctx context.Context, jobID string) (backend.History, bool, error)
	FetchArtifact(ctx context.Context, ref backend.ArtifactRef) ([]byte, error)
	Interrupt(ctx context.Context, jobID string) error
	Dial(ctx context.Context, clientID string) (EventStream, error)
}

// EventStream is one job's progress connection.
type EventStream interface {
	Next() (backend.Event, error)
	Close(timeout time.Duration) error
}

// TemplateSource resolves workflow ids to templates.
type TemplateSource interface {
	Template(id string) (*backend.Template, bool)
}

type clientBackend struct{ *backend.Client }

// FromClient adapts an HTTP client to Backend.
func FromClient(c *backend.Client) Backend { return clientBackend{c} }

func (b clientBackend) Dial(ctx context.Context, clientID string) (EventStream, error) {
	s, err := b.Client.Dial(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s, nil
}
