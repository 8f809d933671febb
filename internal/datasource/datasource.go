// Package datasource abstracts where export files come from.
package datasource

import (
	"context"
	"io"
)

// Source opens one export for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
