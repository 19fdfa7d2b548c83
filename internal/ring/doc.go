// Package ring answers the two questions the sharder needs from cluster
// placement: which partition a container's rows belong to, and which
// local device should host a new handoff database for that partition.
//
// Ring is the interface the rest of this module programs against.
// StaticRing is a reference implementation: it hashes (account,
// container) to a partition with FNV, and orders a partition's devices
// with a second FNV hash keyed by partition, extended here with a
// primary/handoff split instead of a single owner.
package ring
