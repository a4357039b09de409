// Package registry discovers models in a model repository.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"strbackend/internal/common/fsutil"
	"strbackend/internal/modelconfig"
	"strbackend/pkg/types"
)

// Scanner lists the models found under a repository root.
type Scanner interface {
	Scan(root string) ([]types.Model, error)
}

// RepositoryScanner treats every sub-directory holding a model configuration
// file as a model. Directories without one are skipped.
type RepositoryScanner struct{}

// NewRepositoryScanner returns a Scanner for model repositories.
func NewRepositoryScanner() Scanner { return RepositoryScanner{} }

func (RepositoryScanner) Scan(root string) ([]types.Model, error) {
	abs, err := fsutil.AbsDir(root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(abs, e.Name())
		path, ok := modelconfig.FindConfig(dir)
		if !ok {
			continue
		}
		models = append(models, types.Model{ID: e.Name(), Name: e.Name(), Path: path, Dir: dir})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans a model repository with the default scanner.
func LoadDir(root string) ([]types.Model, error) {
	return NewRepositoryScanner().Scan(root)
}
