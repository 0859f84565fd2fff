package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Entry is one file unpacked from an uploaded archive.
type Entry struct {
	Name string
	Data []byte
}

// Unpack reads a zip archive from memory and returns its file entries.
// Directories are dropped here; extension filtering is the
// orchestrator's concern.
func Unpack(raw []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}
		entries = append(entries, Entry{Name: f.Name, Data: data})
	}
	return entries, nil
}
