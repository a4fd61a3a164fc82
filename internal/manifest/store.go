package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists manifests as JSON files in a directory, one file per
// manifest named <id>.json.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at the given directory. The directory is
// created on first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the manifest to disk. The write is atomic: content goes to a
// temp file in the same directory which is then renamed into place.
func (s *Store) Save(m *Manifest) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(m.ID)); err != nil {
		return fmt.Errorf("renaming manifest into place: %w", err)
	}

	success = true
	return nil
}

// Load reads a manifest by ID. A missing file or a structurally invalid
// record is reported as an error.
func (s *Store) Load(id string) (*Manifest, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", id, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", id, err)
	}
	return &m, nil
}

// List returns the IDs of all stored manifests, in directory order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing manifests: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
