// Package transport owns the duplex byte channel the protocol runs over.
//
// Ownership boundary:
// - Port contract (read/write, bytes-available query, flush, buffer resets)
// - serial port implementation (8 data bits, even parity, 1 stop bit)
// - in-memory scripted port for tests and offline runs
package transport
