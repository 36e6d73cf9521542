// Package engine is an in-process environment for kobzar threads.
//
// The engine owns every thread record, mailbox and live-reference count.
// Client code never talks to it directly: each thread body receives an
// env.Environment scoped to that thread, and every call made through it
// acts on behalf of that thread.
//
// ARCHITECTURE:
//
// Single-Writer Scheduler Loop:
// Requests that need confirmation from the environment (a paused thread
// allowed to run, a paused thread asked to cease, a body that returned)
// are enqueued to a FIFO queue and confirmed by Run in one goroutine.
// Requests a running thread must confirm itself (pause, cease) are
// confirmed at that thread's next Checkpoint or Sleep.
//
// Shared State:
// Thread records and mailboxes live behind one mutex. Every state change
// closes a broadcast channel so blocked senders, receivers and waiting
// threads re-check their condition. Conditions are evaluated and acted on
// under the same lock, so a condition that holds is never lost.
//
// Ordering:
// Transitions, deliveries and ledger changes are stamped from one logical
// Clock. NEVER use wall-clock timestamps for ordering. Senders blocked on
// the same mailbox slot are resumed in the order they started waiting.
//
// Ledger:
// Every handle group the engine issues holds one live reference in the
// Ledger. With a store attached, transitions, deliveries and reference
// changes are mirrored to SQLite for later inspection.
package engine
