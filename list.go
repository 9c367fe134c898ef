package stage3

import (
	"context"
	"io"
)

// List returns the entries of the archive at path in archive order.
// Content is skipped, not checked; use Verify for that.
func List(ctx context.Context, path string) ([]Entry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return listEntries(ctx, r)
}

// ListFrom returns the entries of the archive stream r.
func ListFrom(ctx context.Context, r io.Reader) ([]Entry, error) {
	ar, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer ar.Close()
	return listEntries(ctx, ar)
}

func listEntries(ctx context.Context, r *Reader) ([]Entry, error) {
	entries := make([]Entry, 0, 256)
	for e, err := range r.Entries() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}
