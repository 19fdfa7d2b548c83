package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

var (
	devicesFlag = &cli.StringFlag{
		Name:  "devices",
		Value: "/srv/node",
		Usage: "root directory under which device mount points live",
	}
	mountCheckFlag = &cli.BoolFlag{
		Name:  "mount-check",
		Value: true,
		Usage: "skip devices that are configured but not currently mounted",
	}
	intervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Value: 1800 * time.Second,
		Usage: "target time between the start of consecutive passes",
	}
	concurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Value: 8,
		Usage: "bounded worker pool size for replication pushes, misplaced-object fills, and cleanup deletes",
	}
	shardGroupCountFlag = &cli.IntFlag{
		Name:  "shard-group-count",
		Value: 500000,
		Usage: "target subtree size a split candidate must reach",
	}
	nodeTimeoutFlag = &cli.DurationFlag{
		Name:  "node-timeout",
		Value: 10 * time.Second,
		Usage: "read timeout for internal HTTP requests",
	}
	connTimeoutFlag = &cli.DurationFlag{
		Name:  "conn-timeout",
		Value: 5 * time.Second,
		Usage: "connection establishment timeout for internal HTTP requests",
	}
	requestTriesFlag = &cli.IntFlag{
		Name:  "request-tries",
		Value: 3,
		Usage: "number of attempts for a transient internal HTTP failure before giving up",
	}
	reclaimAgeFlag = &cli.DurationFlag{
		Name:  "reclaim-age",
		Value: 604800 * time.Second,
		Usage: "minimum age of a tombstone before it is eligible for reclamation",
	}
	reconCachePathFlag = &cli.StringFlag{
		Name:  "recon-cache-path",
		Value: "/var/cache/swift",
		Usage: "directory the daemon writes its recon cache JSON into",
	}
	confDirFlag = &cli.StringFlag{
		Name:  "conf-dir",
		Value: "/etc/swift",
		Usage: "directory holding this daemon's conf files",
	}
	bindPortFlag = &cli.IntFlag{
		Name:  "bind-port",
		Value: 6001,
		Usage: "port this node's container service listens on, used to derive its internal-client base URL",
	}
	internalClientConfFlag = &cli.StringFlag{
		Name:  "internal-client-conf",
		Usage: "path to a YAML internal-client config; an embedded default is used when omitted",
	}
	confFlag = &cli.StringFlag{
		Name:  "conf",
		Usage: "path to an INI-style conf file overriding any of this daemon's built-in defaults; explicit CLI flags still win",
	}
)

// Flags returns every flag the sharder daemon recognizes, for
// cli.App.Flags.
func Flags() []cli.Flag {
	return []cli.Flag{
		devicesFlag,
		mountCheckFlag,
		intervalFlag,
		concurrencyFlag,
		shardGroupCountFlag,
		nodeTimeoutFlag,
		connTimeoutFlag,
		requestTriesFlag,
		reclaimAgeFlag,
		reconCachePathFlag,
		confDirFlag,
		bindPortFlag,
		internalClientConfFlag,
		confFlag,
	}
}
