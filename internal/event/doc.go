// Package event provides the single-goroutine reactor every fan runs on.
//
// Hardware watchers, MQTT handlers and timers never touch presence state
// directly: they Post a callback and the loop runs it. Callbacks therefore
// execute one at a time, in the order they were posted, and need no locks.
//
//	loop := event.NewLoop(256)
//	go loop.Run(ctx)
//	loop.Post(func() { sensor.apply(reading) })
package event
