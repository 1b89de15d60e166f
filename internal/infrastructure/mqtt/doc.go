// Package mqtt provides MQTT connectivity for the fan presence service.
//
// The broker is the service's only link to the rest of the platform:
//   - RPC calls to the object mapper and the inventory manager (Caller)
//   - Fan tachometer feeds consumed by tach presence sensors
//   - Retained system status with Last Will and Testament
//   - Retained health reports
//
// # RPC
//
// A call publishes a Request on platform/rpc/{service} carrying a UUID and
// the caller's reply topic (platform/reply/{client_id}). The service
// answers with a Response carrying the same ID and either a result or a
// RemoteError. Calls are bounded by their context only.
//
//	caller := mqtt.NewCaller(client, client.ClientID(), client.QoS())
//	if err := caller.Start(); err != nil {
//	    return err
//	}
//	var owners map[string][]string
//	err := caller.Call(ctx, "xyz.openbmc_project.ObjectMapper", "GetObject", params, &owners)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) outside a single trusted host
//   - Credentials should come from FANPRESENCE_MQTT_USERNAME/PASSWORD
package mqtt
