package inventory

import (
	"context"
	"fmt"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
)

// methodNotify is the inventory manager's property update method.
const methodNotify = "Notify"

type notifyParams struct {
	ObjectPath string    `json:"object_path"`
	Interface  string    `json:"interface"`
	Objects    ObjectMap `json:"objects"`
}

// Manager sends property updates to the inventory manager.
type Manager struct {
	caller Caller
	path   string
	iface  string
}

// NewManager creates a Manager addressing the manager object named in cfg.
// The owning service is supplied per call, since it is resolved afresh for
// every update.
func NewManager(caller Caller, cfg config.InventoryConfig) *Manager {
	return &Manager{
		caller: caller,
		path:   cfg.ManagerPath,
		iface:  cfg.ManagerInterface,
	}
}

// Path returns the manager's object path.
func (m *Manager) Path() string {
	return m.path
}

// Interface returns the manager's interface name.
func (m *Manager) Interface() string {
	return m.iface
}

// Notify asks service to apply objects. Any failure, including a method
// error returned by the manager, wraps ErrCallRejected.
func (m *Manager) Notify(ctx context.Context, service string, objects ObjectMap) error {
	params := notifyParams{
		ObjectPath: m.path,
		Interface:  m.iface,
		Objects:    objects,
	}
	if err := m.caller.Call(ctx, service, methodNotify, params, nil); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCallRejected, service, err)
	}
	return nil
}
