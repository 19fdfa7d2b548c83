package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// reconFile is the recon cache file pass completion is written into,
// relative to recon_cache_path.
const reconFile = "container.recon"

// DumpReconCache writes (or merges into) the recon cache JSON file
// under dir, stamping container_sharder_pass_completed with the elapsed
// seconds of the most recently completed pass.
func DumpReconCache(dir string, elapsed time.Duration) error {
	path := filepath.Join(dir, reconFile)

	existing := map[string]any{}
	if b, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(b, &existing)
	}
	existing["container_sharder_pass_completed"] = elapsed.Seconds()

	out, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("telemetry: marshal recon cache: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("telemetry: create recon cache dir %s: %w", dir, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("telemetry: write recon cache %s: %w", path, err)
	}
	return nil
}
