package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ManifestFile lists the scene files of a directory.
const ManifestFile = "scene-index.json"

// Manifest is the content of scene-index.json.
type Manifest struct {
	Files []string `json:"files"`
}

// Loader reads scene directories. The zero value loads without schema
// validation and logs through slog.Default().
type Loader struct {
	Validator *Validator
	Logger    *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// LoadDir loads every scene in dir.
//
// Files come from the manifest when it exists and lists at least one file;
// otherwise from a directory listing. Files that cannot be read, parsed or
// validated are skipped with a logged error, so one broken scene never hides
// the others. Scenes are ordered by id with locale collation.
func (l *Loader) LoadDir(dir string) (*Collection, error) {
	fsys := os.DirFS(dir)
	files, err := l.discover(fsys)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Scene, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			l.logger().Error("unable to load scene file", "file", name, "error", err)
			continue
		}
		s, err := l.parse(name, data)
		if err != nil {
			l.logger().Error("error parsing scene file", "file", name, "error", err)
			continue
		}
		byID[s.ID] = s
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	SortIDs(ids)

	c := &Collection{Scenes: make([]*Scene, 0, len(ids))}
	for _, id := range ids {
		c.Scenes = append(c.Scenes, byID[id])
	}
	return c, nil
}

func (l *Loader) parse(name string, data []byte) (*Scene, error) {
	if l.Validator != nil {
		if err := l.Validator.Validate(name, data); err != nil {
			return nil, err
		}
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	s.ID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return &s, nil
}

// discover returns the scene file names for fsys, manifest first.
func (l *Loader) discover(fsys fs.FS) ([]string, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	switch {
	case err == nil:
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			l.logger().Warn("unable to parse scene manifest, listing directory", "error", err)
			break
		}
		files := filterSceneFiles(m.Files)
		if len(files) > 0 {
			return files, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		l.logger().Debug("no scene manifest, listing directory")
	default:
		l.logger().Warn("unable to read scene manifest, listing directory", "error", err)
	}

	return listSceneFiles(fsys)
}

func listSceneFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list scene directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return filterSceneFiles(names), nil
}

// filterSceneFiles keeps unique *.json names other than the manifest,
// sorted with locale collation.
func filterSceneFiles(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		base := filepath.Base(name)
		if !strings.HasSuffix(base, ".json") || base == ManifestFile || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, base)
	}
	SortIDs(out)
	return out
}

// WriteManifest regenerates the manifest of dir from its directory listing
// and returns the listed files.
func WriteManifest(dir string) ([]string, error) {
	files, err := listSceneFiles(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	data, err := json.MarshalIndent(Manifest{Files: files}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return files, nil
}

// SortIDs sorts scene ids or file names in place using English collation,
// the ordering a reader expects in a table of contents.
func SortIDs(ids []string) {
	collate.New(language.English).SortStrings(ids)
}
