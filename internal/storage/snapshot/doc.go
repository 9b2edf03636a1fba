// Package snapshot persists a live browser state directory as a snapshot.
//
// Layout on disk:
//
//	<snapshot-root>/
//	  user-state/   opaque subtree owned by the automation engine
//	  descriptor    JSON fingerprint descriptor
//
// The engine keeps writing into its state directory while a copy runs, so
// each entry is classified: vanished and ignorable files are skipped,
// anything else fails the attempt and the whole tree is copied again, up to
// Config.MaxAttempts times with a fixed delay in between.
package snapshot
