package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// acquireWorkspace removes whatever a previous run left in dir and creates it
// anew. The returned function removes the workspace again and must be called
// on every exit path.
func acquireWorkspace(fs afero.Fs, dir string, logger *logrus.Entry) (func(), error) {
	if dir == "" {
		return nil, fmt.Errorf("no workspace directory configured")
	}
	if err := fs.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clean workspace %s: %w", dir, err)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	logger.Debugf("Acquired workspace %s.", dir)
	return func() {
		if err := fs.RemoveAll(dir); err != nil {
			logger.WithError(err).Warnf("Failed to remove workspace %s.", dir)
			return
		}
		logger.Debugf("Released workspace %s.", dir)
	}, nil
}
