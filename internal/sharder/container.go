package sharder

import "github.com/dreamware/shardctl/internal/containerdb"

// LocalContainer identifies one on-disk container database this node
// is responsible for auditing during a pass. cmd/sharder builds these
// by walking the configured device directories; tests build them
// directly over a containerdb.BoltBroker opened on a temporary file.
type LocalContainer struct {
	Account   string
	Container string
	Path      string
	Broker    containerdb.Broker
}
