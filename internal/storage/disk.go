package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the persisted stores, in bytes.
type Usage struct {
	Catalog int64 `json:"catalog_bytes"`
	Corpus  int64 `json:"corpus_bytes"`
}

// Total returns the combined size.
func (u Usage) Total() int64 { return u.Catalog + u.Corpus }

// MeasureUsage sums the SQLite catalog (with its WAL and shared-memory files) and the
// keyword corpus directory. Empty or missing paths count as zero.
func MeasureUsage(catalogPath, corpusPath string) (Usage, error) {
	var u Usage
	if catalogPath != "" {
		n, err := pathSize(catalogPath, catalogPath+"-wal", catalogPath+"-shm")
		if err != nil {
			return Usage{}, err
		}
		u.Catalog = n
	}
	if corpusPath != "" {
		n, err := pathSize(corpusPath)
		if err != nil {
			return Usage{}, err
		}
		u.Corpus = n
	}
	return u, nil
}

func pathSize(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
