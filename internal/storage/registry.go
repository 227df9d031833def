package storage

import (
	"fmt"
	"sync"

	"github.com/holtet/backstack/internal/model"
)

// Registry resolves storage backend rows into gateways. Gateways are cached
// per backend ID and invalidated when the backend row changes.
type Registry struct {
	mu       sync.Mutex
	gateways map[string]cachedGateway
}

type cachedGateway struct {
	gateway   Gateway
	updatedAt int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]cachedGateway)}
}

// Resolve returns a gateway for the backend, building one if needed.
func (r *Registry) Resolve(backend *model.StorageBackend) (Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("storage backend is nil")
	}
	if !backend.Enabled {
		return nil, fmt.Errorf("storage backend %s is disabled", backend.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := backend.UpdatedAt.UnixNano()
	if cached, ok := r.gateways[backend.ID]; ok && cached.updatedAt == stamp {
		return cached.gateway, nil
	}

	gw, err := build(backend)
	if err != nil {
		return nil, err
	}
	r.gateways[backend.ID] = cachedGateway{gateway: gw, updatedAt: stamp}
	return gw, nil
}

func build(backend *model.StorageBackend) (Gateway, error) {
	switch backend.Type {
	case model.BackendTypeLocal, model.BackendTypeSMB:
		// SMB shares are mounted by the host; both resolve to a path.
		if backend.BasePath == "" {
			return nil, fmt.Errorf("storage backend %s has no base path", backend.ID)
		}
		return NewLocalGateway(backend.BasePath), nil
	case model.BackendTypeS3:
		if backend.Bucket == "" {
			return nil, fmt.Errorf("storage backend %s has no bucket", backend.ID)
		}
		return NewS3Gateway(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend type %q", backend.Type)
	}
}
