// Package config defines the sharder daemon's command-line surface
// with github.com/urfave/cli/v2, declaring the recognized options and
// their defaults one flag at a time, in the style erigon/bsc's
// cmd/*/main.go packages declare their flags as package-level vars.
//
// It also loads the optional internal-client YAML side-config (an
// embedded proxy-pipeline body with account_autocreate defaulted true
// when no file is given).
package config
