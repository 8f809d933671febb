// Package file implements the local filesystem data source: discovering
// exports in an entity folder, opening them, and archiving them after a load.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source bound to one export file.
type Local struct{ path string }

// NewLocal returns a Local for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the file path the source reads.
func (l *Local) Path() string { return l.path }

// Open opens the file for sequential reading. A context that is already done
// is reported without touching the filesystem.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
