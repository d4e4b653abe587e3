// ABOUTME: Ready-made device delegates
// ABOUTME: Tone generator, file player, WAV recorder and the ring buffer they share
// Package source provides device.Delegate implementations that are useful on
// their own and serve as examples for writing delegates.
//
// Real-time methods never block: the player and recorder move audio between
// the device thread and a worker goroutine through a Ring.
//
// Example:
//
//	tone := source.NewTone(440, 0.5)
//	dev.SetDelegate(tone)
//	err := dev.Start()
package source
