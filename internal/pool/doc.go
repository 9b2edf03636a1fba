// Package pool bounds concurrent task execution and keeps one browser
// instance per environment locator.
//
// A Manager holds two independent pieces of state: an admission counter
// checked by AcquireCapacity, and a registry of instances keyed by
// domain.DeriveInstanceID. Instances are materialized lazily by a
// Materializer, lent out exclusively with AcquireInstance, and evicted by a
// periodic sweep once they have been idle longer than the configured age.
package pool
