package engine

import (
	"path/filepath"

	"github.com/behrlich/katapipe/internal/config"
)

// RelayID is the reserved id of the ikatago relay engine.
const RelayID = "i"

// NewRelay builds the adapter for the ikatago relay executable, which
// behaves as a local subprocess but tunnels to a hosted engine.
func NewRelay(cfg config.RelaySection) Engine {
	folder := config.ExpandUser(cfg.DataFolder)
	argv := []string{
		filepath.Join(folder, cfg.Exe),
		"--platform", "all",
		"--username", cfg.Username,
		"--password", cfg.Password,
		"--kata-local-config", filepath.Join(folder, cfg.GTPConfigFile),
	}
	return newProc(RelayID, argv)
}
