// Package session owns the host side of the accelerator link protocol.
//
// Ownership boundary:
// - byte-alignment synchronizer (strict and trusted policies)
// - handshake negotiator (outbound, inbound, completion)
// - payload transfer engine with timeout-driven retransmission
// - result receiver and result container
// - session controller (reset, mode switch, transfer, self test)
//
// Every component is single-threaded and polls the transport; cancellation is
// carried by context.Context and the transport is released by Session.Close.
package session
