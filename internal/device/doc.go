// Package device simulates the accelerator end of the link.
//
// Sim implements transport.Port, so a session can drive it exactly as it
// drives a serial port. It reacts synchronously to host writes and produces
// its sentinel stream lazily as the host polls, which keeps every exchange
// single-threaded and deterministic. Faults (misalignment, silent drops,
// missing acks, stray and duplicate frames, reordering) are opt-in.
package device
