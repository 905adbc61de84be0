package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// StampLayout is the processing timestamp appended to archived file names.
const StampLayout = "20060102_150405"

var archiveSuffix = regexp.MustCompile(`_\d{8}_\d{6}(_\d+)?$`)

// Archive is the directory processed files are moved into. An archived file
// is named <original>_<YYYYMMDD_HHMMSS>, with _<n> added on collision, so
// the original name can be recovered from the archive listing.
type Archive struct {
	dir    string
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir, now: time.Now, rename: os.Rename}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string { return a.dir }

// Ensure creates the archive directory if needed.
func (a *Archive) Ensure() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	return nil
}

// OriginalName strips the archive suffix from an archived file name.
// It reports false for names that do not carry the suffix.
func OriginalName(archived string) (string, bool) {
	loc := archiveSuffix.FindStringIndex(archived)
	if loc == nil || loc[0] == 0 {
		return "", false
	}
	return archived[:loc[0]], true
}

// Index returns the set of original names present in the archive.
// A missing archive directory is an empty archive.
func (a *Archive) Index() (map[string]bool, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	index := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := OriginalName(entry.Name()); ok {
			index[name] = true
		}
	}
	return index, nil
}

// Move renames src into the archive and returns the destination path.
func (a *Archive) Move(src string) (string, error) {
	base := filepath.Base(src) + "_" + a.now().Format(StampLayout)
	dest := filepath.Join(a.dir, base)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dest = filepath.Join(a.dir, fmt.Sprintf("%s_%d", base, n))
	}

	if err := a.rename(src, dest); err != nil {
		if _, statErr := os.Lstat(src); errors.Is(statErr, fs.ErrNotExist) {
			return dest, ErrSourceGone
		}
		return dest, err
	}
	return dest, nil
}
