package repositories

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/your-org/storefront/internal/domain"
)

// snapshot is the on-disk layout: collection name -> ordered documents.
type snapshot map[string][]domain.Document

// errNoSnapshot is returned by readSnapshot when the file does not exist yet.
var errNoSnapshot = errors.New("snapshot file does not exist")

func readSnapshot(path string) (snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNoSnapshot
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		snap = snapshot{}
	}
	for name, docs := range snap {
		if docs == nil {
			snap[name] = []domain.Document{}
		}
	}
	return snap, nil
}

// writeSnapshot rewrites the whole file. The data goes to a temporary file in
// the same directory first and is renamed over the target, so a crash mid-write
// leaves the previous snapshot intact.
func writeSnapshot(path string, snap snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// quarantineSnapshot moves an unreadable snapshot aside so the next write
// does not destroy it.
func quarantineSnapshot(path string) (string, error) {
	target := path + ".corrupt"
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

// maxIDSuffix finds the largest "<prefix>_<n>" number across all collections,
// so a reloaded store keeps minting unique ids.
func maxIDSuffix(snap snapshot) int64 {
	var max int64
	for _, docs := range snap {
		for _, doc := range docs {
			id, ok := doc.ID().(string)
			if !ok {
				continue
			}
			i := strings.LastIndexByte(id, '_')
			if i < 0 {
				continue
			}
			n, err := strconv.ParseInt(id[i+1:], 10, 64)
			if err == nil && n > max {
				max = n
			}
		}
	}
	return max
}
