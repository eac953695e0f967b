package engine

import (
	"path/filepath"

	"github.com/behrlich/katapipe/internal/config"
)

// LocalID is the reserved id of the local KataGo subprocess. It always
// sorts first in the registry.
const LocalID = "0"

// NewLocal builds the adapter for a KataGo gtp subprocess launched from
// the configured folder.
func NewLocal(cfg config.LocalSection) Engine {
	folder := config.ExpandUser(cfg.KatagoFolder)
	argv := []string{
		filepath.Join(folder, cfg.Exe),
		"gtp",
		"-model", filepath.Join(folder, cfg.Model),
		"-config", filepath.Join(folder, cfg.GTPConfigFile),
	}
	return newProc(LocalID, argv)
}
