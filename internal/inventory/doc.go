// Package inventory talks to the platform's object mapper and inventory
// manager over the bus.
//
// The mapper answers "which service owns this object path and interface";
// the manager accepts Notify calls that set properties on inventory objects.
// Neither is implemented here. Both are reached through an RPC Caller,
// normally *mqtt.Caller.
//
//	owner, err := mapper.Owner(ctx, cfg.ManagerPath, cfg.ManagerInterface)
//	if err != nil {
//	    return err // wraps ErrResolutionFailed
//	}
//	objects := inventory.ItemObject(fanPath, cfg.ItemInterface, true, "Fan 0")
//	err = manager.Notify(ctx, owner, objects) // wraps ErrCallRejected
package inventory
