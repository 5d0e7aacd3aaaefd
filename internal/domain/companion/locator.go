package companion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"roadscan-server-go/internal/utils"
)

// Options configures where companions live on disk and how they are served.
type Options struct {
	Root      string
	Subdir    string
	URLPrefix string
	Logger    *utils.Logger
}

// Locator resolves derived names inside the companion directory.
type Locator struct {
	dir       string
	urlPrefix string
	logger    *utils.Logger
}

func NewLocator(opts Options) (*Locator, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("companion root is required")
	}
	prefix := opts.URLPrefix
	if prefix == "" {
		prefix = "/" + filepath.ToSlash(filepath.Base(opts.Root))
	}
	return &Locator{
		dir:       filepath.Join(opts.Root, opts.Subdir),
		urlPrefix: path.Join(prefix, filepath.ToSlash(opts.Subdir)),
		logger:    opts.Logger,
	}, nil
}

// Dir is the directory companions are read from.
func (l *Locator) Dir() string {
	return l.dir
}

// Locate derives the companion name for originalName and reads its bytes.
// A missing file, or a name that would resolve outside Dir, yields ErrArtifactNotFound.
func (l *Locator) Locate(ctx context.Context, originalName string) (Ref, []byte, error) {
	ref := Derive(originalName)
	if strings.TrimSpace(originalName) == "" {
		return ref, nil, errors.New("original file name is required")
	}
	if err := ctx.Err(); err != nil {
		return ref, nil, err
	}

	full := filepath.Join(l.dir, ref.DerivedName)
	if err := withinDir(full, l.dir); err != nil {
		l.logger.WarnTag("Analysis", "rejected companion name %q: %v", originalName, err)
		return ref, nil, fmt.Errorf("%w (%s)", ErrArtifactNotFound, ref.DerivedName)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDir(full) {
			l.logger.InfoTag("Analysis", "companion %s not found in %s", ref.DerivedName, l.dir)
			return ref, nil, fmt.Errorf("%w (%s)", ErrArtifactNotFound, ref.DerivedName)
		}
		return ref, nil, fmt.Errorf("read companion %s: %w", ref.DerivedName, err)
	}

	l.logger.DebugTag("Analysis", "companion %s located (%d bytes)", ref.DerivedName, len(data))
	return ref, data, nil
}

// URL returns the public path the companion is served under.
func (l *Locator) URL(ref Ref) string {
	return l.urlPrefix + "/" + url.PathEscape(ref.DerivedName)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
