package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// parseConfFile reads an INI-style conf file: `[section]` headers,
// blank lines, and `#`/`;`-prefixed comments are ignored; every
// `key = value` line anywhere in the file is flattened into one map,
// since every recognized option is process-wide rather than
// section-scoped.
func parseConfFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open conf file %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read conf file %s: %w", path, err)
	}
	return out, nil
}
