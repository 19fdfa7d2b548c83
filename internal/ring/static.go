package ring

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
)

// StaticRing is a fixed-membership Ring: the device list and replica
// count are set once at construction and never rebalanced. It is
// sufficient for a single-process reference deployment; a production
// ring would instead read a ring file built by an external builder
// tool, but the interface above is all the rest of this module depends
// on.
type StaticRing struct {
	partitionCount uint64
	replicaCount   int
	devices        []Device
}

// NewStaticRing builds a ring over devices with 2^partitionPower
// partitions, each owned by replicaCount primaries. partitionPower must
// be > 0 and replicaCount must be <= len(devices), or partition lookups
// degrade to whatever devices exist.
func NewStaticRing(partitionPower uint, replicaCount int, devices []Device) *StaticRing {
	cp := make([]Device, len(devices))
	copy(cp, devices)
	return &StaticRing{
		partitionCount: 1 << partitionPower,
		replicaCount:   replicaCount,
		devices:        cp,
	}
}

// Partition implements Ring.
func (r *StaticRing) Partition(account, container string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(account))
	h.Write([]byte{0})
	h.Write([]byte(container))
	if r.partitionCount == 0 {
		return 0
	}
	return h.Sum64() % r.partitionCount
}

// PrimaryDevices implements Ring.
func (r *StaticRing) PrimaryDevices(partition uint64) []Device {
	order := r.deviceOrder(partition)
	n := r.replicaCount
	if n > len(order) {
		n = len(order)
	}
	return order[:n]
}

// HandoffDevices implements Ring.
func (r *StaticRing) HandoffDevices(partition uint64) []Device {
	order := r.deviceOrder(partition)
	n := r.replicaCount
	if n > len(order) {
		n = len(order)
	}
	return order[n:]
}

// deviceOrder returns every device in this ring sorted by a hash of
// (device ID, partition), giving a stable-but-partition-dependent
// permutation: the same device list produces a different primary/
// handoff split for each partition, which is what spreads a container's
// replicas across the cluster instead of always picking the same
// devices first.
func (r *StaticRing) deviceOrder(partition uint64) []Device {
	type scored struct {
		d     Device
		score uint64
	}

	var partBuf [8]byte
	binary.BigEndian.PutUint64(partBuf[:], partition)

	ordered := make([]scored, len(r.devices))
	for i, d := range r.devices {
		h := fnv.New64a()
		h.Write([]byte(d.ID))
		h.Write(partBuf[:])
		ordered[i] = scored{d: d, score: h.Sum64()}
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score < ordered[j].score
		}
		return ordered[i].d.ID < ordered[j].d.ID
	})

	out := make([]Device, len(ordered))
	for i, s := range ordered {
		out[i] = s.d
	}
	return out
}
