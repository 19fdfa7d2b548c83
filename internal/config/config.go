package config

import (
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
)

// Config is the resolved set of daemon options, read once from a
// cli.Context at startup.
type Config struct {
	Devices            string
	MountCheck         bool
	Interval           time.Duration
	Concurrency        int
	ShardGroupCount    int
	NodeTimeout        time.Duration
	ConnTimeout        time.Duration
	RequestTries       int
	ReclaimAge         time.Duration
	ReconCachePath     string
	ConfDir            string
	BindPort           int
	InternalClientConf string
}

// FromContext reads every recognized flag off c into a Config. When
// --conf names a readable conf file, its key=value entries fill in for
// any flag the caller did not pass explicitly: conf file values only
// override this package's built-in defaults, never an explicit flag.
func FromContext(c *cli.Context) Config {
	conf := map[string]string{}
	if path := c.String(confFlag.Name); path != "" {
		if parsed, err := parseConfFile(path); err == nil {
			conf = parsed
		}
	}

	return Config{
		Devices:            stringOpt(c, devicesFlag.Name, "devices", conf),
		MountCheck:         boolOpt(c, mountCheckFlag.Name, "mount_check", conf),
		Interval:           durationOpt(c, intervalFlag.Name, "interval", conf),
		Concurrency:        intOpt(c, concurrencyFlag.Name, "concurrency", conf),
		ShardGroupCount:    intOpt(c, shardGroupCountFlag.Name, "shard_group_count", conf),
		NodeTimeout:        durationOpt(c, nodeTimeoutFlag.Name, "node_timeout", conf),
		ConnTimeout:        durationOpt(c, connTimeoutFlag.Name, "conn_timeout", conf),
		RequestTries:       intOpt(c, requestTriesFlag.Name, "request_tries", conf),
		ReclaimAge:         durationOpt(c, reclaimAgeFlag.Name, "reclaim_age", conf),
		ReconCachePath:     stringOpt(c, reconCachePathFlag.Name, "recon_cache_path", conf),
		ConfDir:            stringOpt(c, confDirFlag.Name, "conf_dir", conf),
		BindPort:           intOpt(c, bindPortFlag.Name, "bind_port", conf),
		InternalClientConf: stringOpt(c, internalClientConfFlag.Name, "internal_client_conf_path", conf),
	}
}

func stringOpt(c *cli.Context, flagName, confKey string, conf map[string]string) string {
	if c.IsSet(flagName) {
		return c.String(flagName)
	}
	if v, ok := conf[confKey]; ok {
		return v
	}
	return c.String(flagName)
}

func boolOpt(c *cli.Context, flagName, confKey string, conf map[string]string) bool {
	if c.IsSet(flagName) {
		return c.Bool(flagName)
	}
	if v, ok := conf[confKey]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return c.Bool(flagName)
}

func intOpt(c *cli.Context, flagName, confKey string, conf map[string]string) int {
	if c.IsSet(flagName) {
		return c.Int(flagName)
	}
	if v, ok := conf[confKey]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return c.Int(flagName)
}

func durationOpt(c *cli.Context, flagName, confKey string, conf map[string]string) time.Duration {
	if c.IsSet(flagName) {
		return c.Duration(flagName)
	}
	if v, ok := conf[confKey]; ok {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return c.Duration(flagName)
}
