// Package thread models environment-scheduled threads from the client side.
//
// A thread moves through a two-phase lifecycle: the owner requests a
// transition and the environment confirms it by advancing the state.
//
//	Paused  --AllowRun-->      PausedRunRequested    --confirm--> Running
//	Running --RequestPause-->  RunningPauseRequested --confirm--> Paused
//	Running|Paused --RequestCease--> *CeaseRequested --confirm--> Ceased
//	any     --BruteKill-->     Killed
//
// Ceased and Killed are terminal. State.Apply is the pure transition
// function; environments drive confirmation by applying EventConfirm.
//
// Thread is a snapshot of another thread's public record. OwnedThread adds
// the owner's privileges and is bound to the Controller that issued it.
package thread
