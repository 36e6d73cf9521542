// Package handle implements capability handles: reference-counted wrappers
// around environment-tracked resources with mandatory finalization.
//
// # Ownership
//
// A handle group is created by the environment, which registers one live
// reference for it under the resource Uid. Owners are added with Clone and
// dropped with Release. When the last owner of a group is released the
// environment's ReleaseResource hook runs, exactly once. Callers should pair
// every handle they receive with a deferred Release:
//
//	inst := found[0]
//	defer inst.Release()
//
// # Scheduling domains
//
// Two flavors exist and are kept distinct at the type level:
//   - Local: owned within one scheduling domain, non-atomic owner count
//   - Shared: safe to hand to independently scheduled threads
//
// Converting between them is explicit (Local.Share, Shared.Localize) and
// fails unless the caller is the sole owner.
//
// # Equality
//
// Handles with equal Uids are equal, whatever their cached payloads hold.
// Only handles with different Uids fall through to payload comparison.
//
// # Variable data
//
// Snapshot holds data the environment may change at any time. It is valid
// as of its creation or last Update; there is no push notification.
package handle
