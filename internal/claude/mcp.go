package claude

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/batalabs/gramd/internal/config"
)

// mcpConfig mirrors the .mcp.json shape the CLI consumes. The CLI owns the
// actual server connections; we only stage the file and read server names to
// extend the tool allow-list.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// mcpSourcePath returns the .mcp.json to stage: project scope (cwd) first,
// then user scope (~/.config/gramd/mcp.json).
func mcpSourcePath() string {
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, ".mcp.json")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if dir := config.ConfigDir(); dir != "" {
		p := filepath.Join(dir, "mcp.json")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// stageMCPConfig copies the current .mcp.json into the CLI working directory
// before each run, or removes a stale staged copy when the source is gone.
func (r *Runner) stageMCPConfig() {
	dst := filepath.Join(r.WorkDir, ".mcp.json")
	src := mcpSourcePath()
	if src == "" {
		os.Remove(dst)
		return
	}
	copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// mcpServerNames reads server names from a staged .mcp.json. Missing or
// malformed files yield no names.
func mcpServerNames(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg mcpConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
