package packages

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ChangeReport summarises the state of a package's sources relative to its install stamp.
type ChangeReport struct {
	Installed      bool
	InstalledAt    time.Time
	LatestChange   time.Time
	LatestFile     string
	NeedsRebuild   bool
	ScannedEntries int
}

// InspectSources walks the source directory and reports whether any file
// changed after the last install. Excluded paths, the stamp directory and
// skipDirectories (build output such as phase logs) are not considered.
func InspectSources(pkg *Package, skipDirectories ...string) (ChangeReport, error) {
	report := ChangeReport{}
	skipped := append([]string{pkg.StampDirectory()}, skipDirectories...)

	stampInfo, stampError := os.Stat(pkg.InstallStampPath())
	switch {
	case stampError == nil:
		report.Installed = true
		report.InstalledAt = stampInfo.ModTime()
	case errors.Is(stampError, fs.ErrNotExist):
	default:
		return ChangeReport{}, stampError
	}

	walkError := filepath.WalkDir(pkg.SourceDirectory(), func(path string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if path == pkg.SourceDirectory() {
			return nil
		}
		if entry.IsDir() && withinAny(path, skipped) {
			return filepath.SkipDir
		}
		relativePath, relativeError := filepath.Rel(pkg.SourceDirectory(), path)
		if relativeError != nil {
			return relativeError
		}
		if pkg.IsExcluded(relativePath) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		info, infoError := entry.Info()
		if infoError != nil {
			return infoError
		}
		report.ScannedEntries++
		if info.ModTime().After(report.LatestChange) {
			report.LatestChange = info.ModTime()
			report.LatestFile = relativePath
		}
		return nil
	})
	if walkError != nil {
		return ChangeReport{}, walkError
	}

	report.NeedsRebuild = !report.Installed || report.LatestChange.After(report.InstalledAt)
	return report, nil
}

func withinAny(path string, directories []string) bool {
	for _, directory := range directories {
		if isWithin(path, directory) {
			return true
		}
	}
	return false
}

// isWithin resolves relative directories against the working directory. A
// blank directory never matches.
func isWithin(path string, directory string) bool {
	if len(strings.TrimSpace(directory)) == 0 {
		return false
	}
	absoluteDirectory, absoluteError := filepath.Abs(directory)
	if absoluteError != nil {
		return false
	}
	relativePath, relativeError := filepath.Rel(absoluteDirectory, path)
	if relativeError != nil {
		return false
	}
	return relativePath == "." || (!strings.HasPrefix(relativePath, "..") && !filepath.IsAbs(relativePath))
}
