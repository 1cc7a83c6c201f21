// Package share abstracts the file share the invoice batches are exchanged
// through. Batches arrive as compressed archives in a source directory, the
// reduced archives are written back to a target directory, and originals are
// copied to an archive directory before removal.
package share

import "context"

// Share is the port for the batch file exchange area.
type Share interface {
	// List returns the file names (no directory part) directly under path.
	List(ctx context.Context, path string) ([]string, error)
	// Read returns the full content of the file at path+name.
	Read(ctx context.Context, path, name string) ([]byte, error)
	// Write creates or replaces the file at path+name.
	Write(ctx context.Context, path, name string, data []byte) error
	// Delete removes the file at path+name. Deleting a missing file is an
	// error.
	Delete(ctx context.Context, path, name string) error
}

// NormalizePath guarantees a trailing slash so paths can be concatenated
// with file names directly.
func NormalizePath(path string) string {
	if path == "" {
		return path
	}
	if path[len(path)-1] == '/' {
		return path
	}
	return path + "/"
}
