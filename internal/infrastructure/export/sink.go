// Package export writes exported documents and their manifest to the local filesystem.
package export

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/render"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// DirectorySinkOptions configures a DirectorySink.
type DirectorySinkOptions struct {
	Root   string
	Logger *logrus.Logger
}

// DirectorySink stores each delivered document as a file below Root.
type DirectorySink struct {
	root   string
	logger *logrus.Logger
}

var _ delivery.Sink = (*DirectorySink)(nil)

// NewDirectorySink creates Root if needed.
func NewDirectorySink(opts DirectorySinkOptions) (*DirectorySink, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, eris.New("export directory is required")
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, eris.Wrapf(err, "creating export directory %s", root)
	}

	return &DirectorySink{root: root, logger: opts.Logger}, nil
}

// Root returns the directory documents are written below.
func (s *DirectorySink) Root() string {
	return s.root
}

// Deliver writes content to name, a slash separated path relative to Root. The write
// goes through a temporary file so a reader never sees a partial document.
func (s *DirectorySink) Deliver(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "delivering export document")
	}

	target, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return eris.Wrapf(err, "creating directory for %s", name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*")
	if err != nil {
		return eris.Wrapf(err, "creating temporary file for %s", name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "writing %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "closing %s", name)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "setting permissions on %s", name)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "moving %s into place", name)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"name": name, "bytes": len(content)}).Debug("export document written")
	}
	return nil
}

func (s *DirectorySink) resolve(name string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", eris.Errorf("invalid export name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// NameFor places every document of a batch in a directory named after the batch id.
func NameFor(batch *page.Batch, record page.PageRecord) string {
	return path.Join(batch.ID, render.FileName(record))
}
