// Package sprite resolves portrait images for stage slots. A sprite set is a
// directory per character holding one image per expression:
//
//	<root>/<name>/<expression>.<ext>
//
// Lookup is best-effort: a missing sprite is an absence, not an error, and
// the overlay renders a placeholder for it.
package sprite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"
)

// DefaultExtensions is the probe order used when none is configured.
var DefaultExtensions = []string{"png", "webp", "gif", "jpg"}

// Locator resolves the image reference for a character's expression.
type Locator interface {
	// Locate returns the reference (a path or URL the overlay can fetch)
	// for name showing expr, or ok=false when no sprite exists. An error is
	// returned only for lookup failures, never for plain absence.
	Locate(ctx context.Context, name, expr string) (ref string, ok bool, err error)
}

// Compile-time check that *FSLocator satisfies [Locator].
var _ Locator = (*FSLocator)(nil)

// FSLocator resolves sprites against a filesystem tree.
type FSLocator struct {
	fsys    fs.FS
	baseURL string
	exts    []string
}

// FSOption configures an [FSLocator].
type FSOption func(*FSLocator)

// WithExtensions overrides the probe order. Leading dots are tolerated.
func WithExtensions(exts []string) FSOption {
	return func(l *FSLocator) {
		if len(exts) == 0 {
			return
		}
		cleaned := make([]string, 0, len(exts))
		for _, e := range exts {
			cleaned = append(cleaned, strings.TrimPrefix(e, "."))
		}
		l.exts = cleaned
	}
}

// WithBaseURL maps located sprites onto a URL prefix instead of returning
// the filesystem path. The relative sprite path is appended escaped.
func WithBaseURL(base string) FSOption {
	return func(l *FSLocator) {
		l.baseURL = strings.TrimSuffix(base, "/")
	}
}

// NewFSLocator resolves sprites under dir.
func NewFSLocator(dir string, opts ...FSOption) *FSLocator {
	return newFSLocator(os.DirFS(dir), opts...)
}

// NewLocatorFS is like [NewFSLocator] for an arbitrary fs.FS, used in tests.
func NewLocatorFS(fsys fs.FS, opts ...FSOption) *FSLocator {
	return newFSLocator(fsys, opts...)
}

func newFSLocator(fsys fs.FS, opts ...FSOption) *FSLocator {
	l := &FSLocator{fsys: fsys, exts: DefaultExtensions}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate implements [Locator]. Extensions are probed in configured order;
// the first hit wins.
func (l *FSLocator) Locate(ctx context.Context, name, expr string) (string, bool, error) {
	if name == "" || expr == "" {
		return "", false, nil
	}
	for _, ext := range l.exts {
		rel := path.Join(name, expr+"."+ext)
		info, err := fs.Stat(l.fsys, rel)
		if err != nil {
			if isAbsence(err) {
				continue
			}
			return "", false, fmt.Errorf("sprite: stat %q: %w", rel, err)
		}
		if info.IsDir() {
			continue
		}
		return l.ref(rel), true, nil
	}
	return "", false, nil
}

// ref maps a relative sprite path to the reference served to the overlay.
func (l *FSLocator) ref(rel string) string {
	if l.baseURL == "" {
		return rel
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return l.baseURL + "/" + strings.Join(parts, "/")
}

// isAbsence reports whether err means the sprite simply is not there.
// A missing character directory surfaces as ErrNotExist too.
func isAbsence(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
