// Package telemetry is the ambient observability stack for the sharder
// daemon: structured logging via go.uber.org/zap, a prometheus metrics
// registry for pass duration and outcome counters, and a recon cache
// JSON dump that mirrors the daemon's last completed pass.
package telemetry
