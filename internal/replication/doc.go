// Package replication defines the narrow interface the sharder uses to
// push a finished database file out to another device: Pusher. The
// replication engine itself is out of scope for this module (it owns
// rsync-equivalent transfer, retry, and quorum logic); LocalCopyPusher
// is a reference implementation suitable for a single-machine
// deployment where "pushing" a db to a handoff device is a plain file
// copy.
package replication
