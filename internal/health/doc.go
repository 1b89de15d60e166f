// Package health publishes the service's operational status on the bus.
//
// A Reporter publishes a retained JSON message to platform/health/{id}
// when the service starts, every interval while it runs, and once more
// with status "stopping" on shutdown. The broker's last will on the
// system status topic covers ungraceful exits.
package health
