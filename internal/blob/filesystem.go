package blob

import (
	"meetcore/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed blob.Store rooted at the
// provided path. Call sites get the interface so they stay decoupled from the
// concrete implementation.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
