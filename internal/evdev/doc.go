// Package evdev reads key state and key events from a Linux input device.
//
// Presence GPIOs are exposed by the gpio-keys driver as keys on an
// /dev/input/event* node: a pressed key means the line is asserted. This
// package covers the three operations a presence sensor needs: query the
// current state of one key (EVIOCGKEY), wait for events with poll(2), and
// decode struct input_event records.
package evdev
