// Package environment collects path-list environment contributions made by
// packages (PATH, RUBYLIB, ...) and renders them for child processes or
// dotenv-style environment files.
package environment

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Well-known path-list variables.
const (
	VariablePath           = "PATH"
	VariableLibraryPath    = "LD_LIBRARY_PATH"
	VariablePkgConfigPath  = "PKG_CONFIG_PATH"
	VariableRubyLibrary    = "RUBYLIB"
	binaryDirectoryName    = "bin"
	libraryDirectoryName   = "lib"
	pkgConfigDirectoryName = "pkgconfig"
)

var sharedLibraryPatterns = []string{"*.so", "*.so.*", "*.dylib"}

// Contribution records a single path appended to a variable.
type Contribution struct {
	Variable string
	Path     string
}

// LookupFunc reads a variable from the inherited environment.
type LookupFunc func(variable string) (string, bool)

// Store is an append-only collection of contributions. It is safe for
// concurrent use.
type Store struct {
	mutex         sync.Mutex
	contributions []Contribution
	inherit       bool
	lookup        LookupFunc
}

// NewStore builds a Store. When inherit is true, rendered values end with the
// variable's current value from lookup (os.LookupEnv when nil).
func NewStore(inherit bool, lookup LookupFunc) *Store {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Store{inherit: inherit, lookup: lookup}
}

// AddPath appends path to variable. Empty values are ignored.
func (store *Store) AddPath(variable string, path string) {
	trimmedVariable := strings.TrimSpace(variable)
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedVariable) == 0 || len(trimmedPath) == 0 {
		return
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.contributions = append(store.contributions, Contribution{Variable: trimmedVariable, Path: filepath.Clean(trimmedPath)})
}

// Contributions returns every recorded contribution in insertion order.
func (store *Store) Contributions() []Contribution {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]Contribution{}, store.contributions...)
}

// Paths returns the distinct paths contributed to variable, first occurrence wins.
func (store *Store) Paths(variable string) []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	seen := map[string]struct{}{}
	paths := []string{}
	for _, contribution := range store.contributions {
		if contribution.Variable != variable {
			continue
		}
		if _, exists := seen[contribution.Path]; exists {
			continue
		}
		seen[contribution.Path] = struct{}{}
		paths = append(paths, contribution.Path)
	}
	return paths
}

// Variables lists the variables that received contributions, sorted.
func (store *Store) Variables() []string {
	store.mutex.Lock()
	seen := map[string]struct{}{}
	for _, contribution := range store.contributions {
		seen[contribution.Variable] = struct{}{}
	}
	store.mutex.Unlock()

	variables := make([]string, 0, len(seen))
	for variable := range seen {
		variables = append(variables, variable)
	}
	sort.Strings(variables)
	return variables
}

// Values renders each contributed variable as a path list.
func (store *Store) Values() map[string]string {
	values := map[string]string{}
	for _, variable := range store.Variables() {
		entries := store.Paths(variable)
		if store.inherit {
			if inherited, exists := store.lookup(variable); exists && len(inherited) > 0 {
				entries = appendInherited(entries, inherited)
			}
		}
		values[variable] = strings.Join(entries, string(os.PathListSeparator))
	}
	return values
}

// Render formats Values in dotenv syntax.
func (store *Store) Render() (string, error) {
	return godotenv.Marshal(store.Values())
}

// WriteFile writes Values to path in dotenv syntax.
func (store *Store) WriteFile(path string) error {
	return godotenv.Write(store.Values(), path)
}

// UpdateForPrefix registers the conventional directories of an installation
// prefix: bin on PATH, lib on LD_LIBRARY_PATH when it holds shared libraries,
// and lib/pkgconfig on PKG_CONFIG_PATH. Missing directories are skipped.
func (store *Store) UpdateForPrefix(prefix string) {
	absolutePrefix, absoluteError := filepath.Abs(prefix)
	if absoluteError != nil {
		return
	}

	binaryDirectory := filepath.Join(absolutePrefix, binaryDirectoryName)
	if isDirectory(binaryDirectory) {
		store.AddPath(VariablePath, binaryDirectory)
	}

	libraryDirectory := filepath.Join(absolutePrefix, libraryDirectoryName)
	if isDirectory(libraryDirectory) && containsSharedLibraries(libraryDirectory) {
		store.AddPath(VariableLibraryPath, libraryDirectory)
	}

	pkgConfigDirectory := filepath.Join(libraryDirectory, pkgConfigDirectoryName)
	if isDirectory(pkgConfigDirectory) {
		store.AddPath(VariablePkgConfigPath, pkgConfigDirectory)
	}
}

func appendInherited(entries []string, inherited string) []string {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry] = struct{}{}
	}
	for _, entry := range filepath.SplitList(inherited) {
		if len(entry) == 0 {
			continue
		}
		if _, exists := seen[entry]; exists {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}
	return entries
}

func containsSharedLibraries(directory string) bool {
	for _, pattern := range sharedLibraryPatterns {
		matches, globError := filepath.Glob(filepath.Join(directory, pattern))
		if globError == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

func isDirectory(path string) bool {
	info, statError := os.Stat(path)
	return statError == nil && info.IsDir()
}
