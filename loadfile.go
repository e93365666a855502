package diva

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
)

// fileDescriptor is satisfied by *os.File but not by *mmap.ReaderAt; when
// present it lets LoadFile advise the kernel of the access pattern it's
// about to use, mirroring bucketteer.NewReader's own Fd()-gated fadvise.
type fileDescriptor interface {
	Fd() uintptr
	Name() string
}

// LoadFile reads a serialized filter from path and deserializes it,
// matching the Serialize/Deserialize wire format of spec.md §6.3. The file
// is opened via mmap and read once in full, since a DIVA filter is meant to
// live entirely in memory once loaded (spec.md §1).
func LoadFile(path string) (*Filter, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("diva: LoadFile: %w", err)
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("diva: LoadFile: file is empty: %s", path)
	}

	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("diva: LoadFile: %w", err)
	}
	defer reader.Close()

	if f, ok := any(reader).(fileDescriptor); ok {
		if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL); err != nil {
			slog.Warn("fadvise(SEQUENTIAL) failed", "error", err)
		}
	} else {
		slog.Info("Loading filter from disk (sequential read)...", "file", path)
	}

	started := time.Now()
	data := make([]byte, reader.Len())
	if _, err := io.ReadFull(io.NewSectionReader(reader, 0, int64(reader.Len())), data); err != nil {
		return nil, fmt.Errorf("diva: LoadFile: reading %s: %w", path, err)
	}
	slog.Info("Filter loaded from disk", "file", path, "bytes", len(data), "duration", time.Since(started).String())

	return Deserialize(data)
}

// SaveFile serializes f and writes it to path, truncating any existing
// file, matching bucketteer.Writer.Seal's create-truncate-sync pattern.
func (f *Filter) SaveFile(path string) error {
	data, err := f.Serialize()
	if err != nil {
		return fmt.Errorf("diva: SaveFile: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diva: SaveFile: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("diva: SaveFile: writing %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("diva: SaveFile: syncing %s: %w", path, err)
	}
	return nil
}
