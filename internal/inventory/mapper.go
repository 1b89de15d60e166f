package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
)

// Caller issues a request/response call to a named service.
// *mqtt.Caller satisfies it.
type Caller interface {
	Call(ctx context.Context, service, method string, params, result any) error
}

// methodGetObject is the object mapper's lookup method.
const methodGetObject = "GetObject"

// getObjectParams addresses GetObject at the mapper object and asks for the
// owners of path that implement any of interfaces.
type getObjectParams struct {
	ObjectPath string   `json:"object_path"`
	Interface  string   `json:"interface"`
	Path       string   `json:"path"`
	Interfaces []string `json:"interfaces"`
}

// Mapper resolves object paths to the services that own them.
type Mapper struct {
	caller  Caller
	service string
	path    string
	iface   string
}

// NewMapper creates a Mapper addressing the mapper named in cfg.
func NewMapper(caller Caller, cfg config.InventoryConfig) *Mapper {
	return &Mapper{
		caller:  caller,
		service: cfg.MapperService,
		path:    cfg.MapperPath,
		iface:   cfg.MapperInterface,
	}
}

// GetObject returns, for each service owning path, the interfaces it
// exports there. An empty answer is an error wrapping ErrNoOwner.
func (m *Mapper) GetObject(ctx context.Context, path string, interfaces []string) (map[string][]string, error) {
	params := getObjectParams{
		ObjectPath: m.path,
		Interface:  m.iface,
		Path:       path,
		Interfaces: interfaces,
	}

	var owners map[string][]string
	if err := m.caller.Call(ctx, m.service, methodGetObject, params, &owners); err != nil {
		return nil, fmt.Errorf("%w: GetObject %s: %w", ErrResolutionFailed, path, err)
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: %w: %s %v", ErrResolutionFailed, ErrNoOwner, path, interfaces)
	}
	return owners, nil
}

// Owner returns the service owning iface at path. When several services
// answer, the lexically first is used so the choice is stable.
func (m *Mapper) Owner(ctx context.Context, path, iface string) (string, error) {
	owners, err := m.GetObject(ctx, path, []string{iface})
	if err != nil {
		return "", err
	}

	services := make([]string, 0, len(owners))
	for service := range owners {
		services = append(services, service)
	}
	sort.Strings(services)
	return services[0], nil
}
