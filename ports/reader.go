package ports

import (
	"context"

	"gesturelab/domain/gesture"
)

// DatasetReader loads observation tables from delimited files
type DatasetReader interface {
	// Read parses the file at path into a typed dataset. Files with an
	// inconsistent column count or uncoercible cells fail with a
	// PARSE_ERROR.
	Read(ctx context.Context, path string) (*gesture.Dataset, error)
}
