// ABOUTME: Format conversion between a device stream and a delegate
// ABOUTME: Bridges channel count, sample rate and block size differences
// Package convert adapts audio between the format a device runs at and the
// format its delegate wants.
//
// Input converters take device-rate frames and emit complete delegate-rate
// blocks. Output converters pull delegate-rate blocks and fill device-rate
// buffers of whatever size the device asks for. Leftover frames are kept in a
// staging buffer between calls, so no audio is dropped or duplicated across
// callback boundaries.
package convert
