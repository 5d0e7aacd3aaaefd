// Package modelstatus reports whether segmentation weights are present on disk.
// The result is informational; estimation never depends on it.
package modelstatus

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"roadscan-server-go/internal/utils"
)

// Status mirrors the /model-status payload.
type Status struct {
	ModelAvailable bool   `json:"modelAvailable"`
	ModelPath      string `json:"modelPath"`
}

type Checker struct {
	path      string
	createDir bool
	logger    *utils.Logger
}

func New(path string, createDir bool, logger *utils.Logger) *Checker {
	return &Checker{path: path, createDir: createDir, logger: logger}
}

// Status checks the weights file. When it is missing and createDir is set,
// the parent directory is created so operators know where to drop it.
func (c *Checker) Status() Status {
	if c.path == "" {
		return Status{}
	}

	info, err := os.Stat(c.path)
	if err == nil && !info.IsDir() {
		return Status{ModelAvailable: true, ModelPath: c.path}
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.WarnTag("Model", "stat %s: %v", c.path, err)
	}

	if c.createDir {
		dir := filepath.Dir(c.path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			c.logger.WarnTag("Model", "create models directory %s: %v", dir, mkErr)
		}
	}
	return Status{}
}

// LogStatus writes the check outcome once, at startup.
func (c *Checker) LogStatus() Status {
	st := c.Status()
	if st.ModelAvailable {
		c.logger.InfoTag("Model", "segmentation weights found at %s", st.ModelPath)
	} else {
		c.logger.InfoTag("Model", "no segmentation weights at %q, serving pre-rendered overlays", c.path)
	}
	return st
}
