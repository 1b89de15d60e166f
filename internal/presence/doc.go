// Package presence decides whether each fan is physically installed and
// keeps the inventory registry in step with that decision.
//
// Ownership is strictly hierarchical:
//
//	FanEnclosure -> RedundancyPolicy -> PresenceSensor(s)
//
// Sensors (GPIO, Tach, Null) cache one boolean reading each. A policy
// (AnyOf or Fallback) reduces the readings to one voted State and reports
// disagreement through each sensor's LogConflict. A FanEnclosure publishes
// the vote to the inventory manager and treats a transition as confirmed
// only after the Notify call succeeds; failed attempts leave the confirmed
// state untouched so the next trigger retries.
//
// # Concurrency
//
// Every sensor reading, vote and inventory update runs on one event.Loop.
// Watcher goroutines and MQTT handlers only Post to it, so none of the
// types here take locks around presence state. Methods documented as
// loop-owned must only be called from a loop callback.
package presence
