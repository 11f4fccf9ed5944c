//go:build !windows

package catalog

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// writeFile replaces path atomically: fsync, then rename over the old file.
func writeFile(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending cache file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
