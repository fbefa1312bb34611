package watch

import (
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/Iron-Ham/forge/internal/errors"
)

// Digests remembers a content hash per file so that writes which leave a
// file byte-identical (editor "save" without edits, touch) do not trigger
// a rebuild.
type Digests struct {
	mu   sync.Mutex
	sums map[string][32]byte
}

// NewDigests creates an empty digest table.
func NewDigests() *Digests {
	return &Digests{sums: make(map[string][32]byte)}
}

// Changed hashes the file at path and reports whether its content differs
// from the last recorded hash. Unknown and deleted files count as changed.
func (d *Digests) Changed(path string) (bool, error) {
	sum, err := hashFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d.mu.Lock()
		delete(d.sums, path)
		d.mu.Unlock()
		return true, nil
	}
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	prev, known := d.sums[path]
	d.sums[path] = sum
	return !known || prev != sum, nil
}

// Seed records the current hash of path without reporting a change.
func (d *Digests) Seed(path string) error {
	sum, err := hashFile(path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sums[path] = sum
	d.mu.Unlock()
	return nil
}

// Len returns the number of tracked files.
func (d *Digests) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sums)
}

func hashFile(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
