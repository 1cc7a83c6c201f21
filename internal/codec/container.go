package codec

import (
	"archive/zip"
	"bytes"
	"io"
)

// Entry is a single named file inside the batch container. Entries keep
// their order: Unpack returns them in container order and Pack writes them
// in slice order, so Unpack(Pack(entries)) == entries.
type Entry struct {
	Name string
	Data []byte
}

// Unpack reads a zip container, preserving each entry's exact name and
// contents. Malformed container structure fails with a CodecError.
func Unpack(data []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &CodecError{Op: "unpack", Cause: err}
	}

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, codecErrorf("unpack", "open entry %q: %w", f.Name, err)
		}

		content, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, codecErrorf("unpack", "read entry %q: %w", f.Name, err)
		}
		if closeErr != nil {
			return nil, codecErrorf("unpack", "close entry %q: %w", f.Name, closeErr)
		}

		entries = append(entries, Entry{Name: f.Name, Data: content})
	}

	return entries, nil
}

// Pack writes entries into a zip container in slice order.
func Pack(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	for _, entry := range entries {
		fw, err := w.Create(entry.Name)
		if err != nil {
			return nil, codecErrorf("pack", "create entry %q: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return nil, codecErrorf("pack", "write entry %q: %w", entry.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, &CodecError{Op: "pack", Cause: err}
	}

	return buf.Bytes(), nil
}

// Find returns the entry with the given name, or false when absent.
func Find(entries []Entry, name string) (Entry, bool) {
	for _, entry := range entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return Entry{}, false
}
