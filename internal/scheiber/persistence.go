package scheiber

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveState writes data to path atomically: marshal to JSON, write to a
// temp file in the same directory, fsync, then rename over the target.
// Grounded on system.py's _save_state, which writes to a .tmp sibling and
// calls Path.replace() rather than writing the target in place.
func SaveState(path string, data map[string]any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync temp: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ErrPersistence, err)
	}
	return nil
}

// LoadState reads a previously saved state file. A missing file is not an
// error — it's the first-run case — and returns (nil, nil). A corrupt file
// is reported via ErrPersistence so the caller can log and continue with
// empty state rather than fail startup.
func LoadState(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read: %v", ErrPersistence, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrPersistence, err)
	}
	return data, nil
}
