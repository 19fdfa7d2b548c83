package ring

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable is returned when no local device is a handoff for
// a partition a new shard needs to land on.
var ErrDeviceUnavailable = errors.New("ring: no local handoff device available for partition")

// Device is one storage device in the cluster: a disk mounted on a
// node, identified by a synthetic ID so the ring can place partitions
// without caring about the device's real filesystem layout.
type Device struct {
	ID     string // synthetic device identifier, stable across ring rebuilds
	NodeID string // node this device is mounted on
	Path   string // mount path, e.g. "/srv/node/d1"
}

// Ring maps containers to partitions and partitions to the devices that
// hold them, split into primaries (where replication converges) and
// handoffs (temporary landing sites used while a primary is busy or, in
// this module's case, while materializing a brand-new shard database).
type Ring interface {
	// Partition returns the partition number (account, container) hashes
	// to.
	Partition(account, container string) uint64

	// PrimaryDevices returns the devices that are the permanent home for
	// partition, in ring order.
	PrimaryDevices(partition uint64) []Device

	// HandoffDevices returns the devices eligible to hold partition
	// temporarily, in the order they should be tried, excluding any
	// device already returned by PrimaryDevices.
	HandoffDevices(partition uint64) []Device
}

// LocalHandoffDevice picks the first handoff device for (account,
// container)'s partition that lives on localNodeID. It returns
// ErrDeviceUnavailable if none of the partition's handoff devices are
// local, so the caller can skip this shard for the current pass and
// retry on the next one.
func LocalHandoffDevice(r Ring, localNodeID, account, container string) (Device, uint64, error) {
	part := r.Partition(account, container)
	for _, d := range r.HandoffDevices(part) {
		if d.NodeID == localNodeID {
			return d, part, nil
		}
	}
	return Device{}, part, fmt.Errorf("%w: partition %d, node %q", ErrDeviceUnavailable, part, localNodeID)
}

// IsLocalDevice reports whether d is mounted on localNodeID.
func IsLocalDevice(d Device, localNodeID string) bool {
	return d.NodeID == localNodeID
}
