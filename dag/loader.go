package dag

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

// documentExtensions are tried in order when a pipeline is loaded by name.
var documentExtensions = []string{".json", ".yaml", ".yml"}

// DocumentLoader loads pipeline documents by name.
type DocumentLoader interface {
	Load(name string, params []string) (*config.Document, error)
	List() ([]string, error)
}

// FileDocumentLoader loads pipeline documents from directories on disk.
type FileDocumentLoader struct {
	dirs []string
}

// NewFileDocumentLoader creates a loader that searches the given directories.
func NewFileDocumentLoader(dirs ...string) *FileDocumentLoader {
	return &FileDocumentLoader{dirs: dirs}
}

// Load searches for {name}.json, {name}.yaml and {name}.yml in each
// directory, in order, and parses the first match with params substituted.
func (l *FileDocumentLoader) Load(name string, params []string) (*config.Document, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, apperrors.InvalidInput("pipeline", "invalid pipeline name "+name)
	}
	for _, dir := range l.dirs {
		for _, ext := range documentExtensions {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			return config.LoadDocument(path, params)
		}
	}
	return nil, apperrors.NotFound("pipeline", name)
}

// List returns the names of every loadable document, sorted and without
// duplicates. Earlier directories shadow later ones.
func (l *FileDocumentLoader) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apperrors.Resource(dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			for _, known := range documentExtensions {
				if ext == known {
					seen[strings.TrimSuffix(e.Name(), ext)] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
