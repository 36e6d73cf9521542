// Package msg is the typed messaging layer between threads.
//
// Every message travels under an Interface tag between one sender and one
// receiver. A receiver's mailbox holds at most one pending message per
// (sender, interface); a second Send while one is pending fails with
// ErrPending. Delivery modes, weakest first:
//
//	Send               buffer and return; no receipt guarantee
//	SendWhenAvailable  wait for the mailbox slot, then buffer
//	Rendezvous         wait until the receiver takes the message
//	RendezvousFor      Rendezvous with a bound; on timeout the message is withdrawn
//	TransferTime       hand the caller's slice to a co-located receiver
//
// Payloads are raw bytes on the Transport boundary. Codec adapts them to Go
// types. Receiver and AcceptUnchecked trust the peer to send what the
// interface declares; Accept checks the interface tag first.
package msg
