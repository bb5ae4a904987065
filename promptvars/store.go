// Package promptvars implements the file-backed variable store.
//
// A variable is one .md or .txt file inside the library directory. Lines
// starting with "#" form the description; every other non-empty line is one
// candidate value. Files in subdirectories get slash-qualified identifiers:
// library/styles/painting.md becomes __styles/painting__.
package promptvars

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"zexplorer/core"
)

// Store reads and writes prompt variables under a library directory.
// The zero directory case (library not created yet) is not an error: LoadAll
// returns an empty map so a fresh install works without setup.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. logger may be nil.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the library directory path.
func (s *Store) Dir() string {
	return s.dir
}

// LoadAll walks the library directory and returns every variable keyed by
// its token identifier ("__name__"). Files that cannot be read are skipped
// with a log line; only a broken directory walk is an error.
func (s *Store) LoadAll() (map[string]core.Variable, error) {
	vars := make(map[string]core.Variable)

	info, err := os.Stat(s.dir)
	if os.IsNotExist(err) {
		return vars, nil
	}
	if err != nil {
		return nil, fmt.Errorf("promptvars: cannot access library dir %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("promptvars: library path %s is not a directory", s.dir)
	}

	err = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		v, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable variable file",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		vars[v.ID] = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("promptvars: walking library dir: %w", err)
	}

	return vars, nil
}

// Save persists a value list under the bare variable name and returns the
// file path. An existing file for the same name is replaced whole; value
// lists are never edited in place.
func (s *Store) Save(name, description string, values []string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("promptvars: variable name must not be empty")
	}
	if len(values) == 0 {
		return "", fmt.Errorf("promptvars: variable %s has no values", name)
	}

	path := filepath.Join(s.dir, name+".md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("promptvars: creating library dir: %w", err)
	}

	var b strings.Builder
	if description != "" {
		b.WriteString("# " + description + "\n")
	}
	for _, v := range values {
		b.WriteString(v + "\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("promptvars: writing %s: %w", path, err)
	}

	s.logger.Info("saved prompt variable",
		zap.String("name", name),
		zap.Int("values", len(values)),
		zap.String("path", path),
	)
	return path, nil
}

// loadFile parses one variable file into a Variable.
func (s *Store) loadFile(path string) (core.Variable, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Variable{}, err
	}
	defer f.Close()

	var descriptionLines, values []string

	scanner := bufio.NewScanner(f)
	// Individual values can be long scene descriptions.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			descriptionLines = append(descriptionLines, line)
		default:
			values = append(values, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return core.Variable{}, err
	}

	return core.Variable{
		ID:          s.tokenID(path),
		Description: strings.Join(descriptionLines, "\n"),
		Values:      values,
		FilePath:    path,
	}, nil
}

// tokenID derives the __name__ identifier from a file path relative to the
// library root, using forward slashes on every platform.
func (s *Store) tokenID(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.ReplaceAll(rel, "\\", "/")
	return "__" + rel + "__"
}
