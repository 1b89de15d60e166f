package mqtt

import "fmt"

// Topic prefixes for the platform bus.
//
// Every topic uses the flat scheme: platform/{category}/{name}
const (
	// TopicPrefix is the base for all platform topics.
	TopicPrefix = "platform"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "platform/system"
)

// Topics provides builders for platform MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	req := topics.RPCRequest("xyz.openbmc_project.ObjectMapper")
//	// Returns: "platform/rpc/xyz.openbmc_project.ObjectMapper"
type Topics struct{}

// =============================================================================
// RPC Topics
// =============================================================================

// RPCRequest returns the topic a service listens on for method calls.
//
// Example: platform/rpc/xyz.openbmc_project.Inventory.Manager
func (Topics) RPCRequest(service string) string {
	return fmt.Sprintf("%s/rpc/%s", TopicPrefix, service)
}

// RPCReply returns the topic a client receives call responses on.
//
// Example: platform/reply/fan-presence
func (Topics) RPCReply(clientID string) string {
	return fmt.Sprintf("%s/reply/%s", TopicPrefix, clientID)
}

// =============================================================================
// Sensor Topics
// =============================================================================

// TachState returns the topic a fan tachometer feed is published on.
//
// Example: platform/state/tach/fan0_0
func (Topics) TachState(feed string) string {
	return fmt.Sprintf("%s/state/tach/%s", TopicPrefix, feed)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic (online/offline and LWT).
//
// Example: platform/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Health returns the retained health topic for a service.
//
// Example: platform/health/fan-presence
func (Topics) Health(service string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, service)
}
