package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const manifestFileName = "manifest.json"

// Manifest is the commit point of an index directory. Readers see exactly the
// segments it lists; segment and delete files not referenced by the current
// manifest are garbage left by interrupted commits.
type Manifest struct {
	Version    int          `json:"version"`
	Generation int64        `json:"generation"`
	Segments   []SegmentRef `json:"segments"`
}

// SegmentRef names one committed segment and the generation of its newest
// delete file. DelGen zero means the segment has no deletions.
type SegmentRef struct {
	Name   string `json:"name"`
	DelGen int64  `json:"del_gen"`
}

// loadManifest reads the current manifest. A missing file is an empty index,
// not an error.
func loadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{Version: 1}, nil
		}
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// saveManifest atomically replaces the manifest via a temp file and rename.
// The rename is the durability point of a commit.
func saveManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	finalPath := filepath.Join(dir, manifestFileName)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing manifest: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

func delFileName(segName string, gen int64) string {
	return fmt.Sprintf("%s.del.%d", segName, gen)
}

// loadDeletes reads the dead-ordinal set for a segment reference. Delete
// files are cumulative, so only the generation named by the reference is
// consulted.
func loadDeletes(dir string, ref SegmentRef) (map[int]struct{}, error) {
	dead := make(map[int]struct{})
	if ref.DelGen == 0 {
		return dead, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, delFileName(ref.Name, ref.DelGen)))
	if err != nil {
		return nil, fmt.Errorf("reading delete file for %s: %w", ref.Name, err)
	}
	var ordinals []int
	if err := json.Unmarshal(data, &ordinals); err != nil {
		return nil, fmt.Errorf("parsing delete file for %s: %w", ref.Name, err)
	}
	for _, ord := range ordinals {
		dead[ord] = struct{}{}
	}
	return dead, nil
}

// saveDeletes writes the full dead-ordinal set of a segment under a new
// generation. Earlier generations stay on disk so readers holding an older
// manifest keep a consistent view.
func saveDeletes(dir, segName string, gen int64, dead map[int]struct{}) error {
	ordinals := make([]int, 0, len(dead))
	for ord := range dead {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)
	data, err := json.Marshal(ordinals)
	if err != nil {
		return fmt.Errorf("marshaling delete file for %s: %w", segName, err)
	}
	finalPath := filepath.Join(dir, delFileName(segName, gen))
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing delete file for %s: %w", segName, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming delete file for %s: %w", segName, err)
	}
	return nil
}
