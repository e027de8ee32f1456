package rake

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	cacheRemovedMessageConstant       = "removed stale build cache"
	cacheRemovalFailedMessageConstant = "unable to remove stale build cache"
	cacheScanFailedMessageConstant    = "unable to scan for stale build caches"
	pathLogFieldNameConstant          = "path"
)

// Directories scanned for native extension build caches, relative to the source directory.
var extensionBuildDirectories = []string{"ext", "tmp"}

// Build cache files removed before a forced build. A stale extconf Makefile or
// CMake cache makes Rake reuse previously compiled extensions.
var buildCacheMarkerNames = map[string]struct{}{
	"Makefile":       {},
	"CMakeCache.txt": {},
}

// SanitizeForForcedBuild deletes native build cache markers under the ext and
// tmp directories of sourceDirectory. Directories are left in place. Removal is
// best effort: failures are logged and skipped. The removed paths are returned.
func SanitizeForForcedBuild(sourceDirectory string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}

	removed := []string{}
	for _, directoryName := range extensionBuildDirectories {
		root := filepath.Join(sourceDirectory, directoryName)
		walkRoot, resolveError := filepath.EvalSymlinks(root)
		if resolveError != nil {
			continue
		}
		if info, statError := os.Stat(walkRoot); statError != nil || !info.IsDir() {
			continue
		}

		walkError := filepath.WalkDir(walkRoot, func(path string, entry fs.DirEntry, entryError error) error {
			if entryError != nil {
				logger.Warn(cacheScanFailedMessageConstant, zap.String(pathLogFieldNameConstant, path), zap.Error(entryError))
				if entry != nil && entry.IsDir() && path != walkRoot {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() {
				return nil
			}
			if _, marker := buildCacheMarkerNames[entry.Name()]; !marker {
				return nil
			}
			removeError := os.Remove(path)
			if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
				logger.Warn(cacheRemovalFailedMessageConstant, zap.String(pathLogFieldNameConstant, path), zap.Error(removeError))
				return nil
			}
			if removeError == nil {
				reported := underRoot(root, walkRoot, path)
				removed = append(removed, reported)
				logger.Debug(cacheRemovedMessageConstant, zap.String(pathLogFieldNameConstant, reported))
			}
			return nil
		})
		if walkError != nil {
			logger.Warn(cacheScanFailedMessageConstant, zap.String(pathLogFieldNameConstant, root), zap.Error(walkError))
		}
	}
	return removed
}

// underRoot maps a path found below the symlink-resolved walkRoot back below
// root, so symlinked ext and tmp directories report source-relative paths.
func underRoot(root string, walkRoot string, path string) string {
	relativePath, relativeError := filepath.Rel(walkRoot, path)
	if relativeError != nil {
		return path
	}
	return filepath.Join(root, relativePath)
}
