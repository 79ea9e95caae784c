package parser

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tokgraph/tokgraph/internal/model"
)

// Roots resolves the on-disk session directories for every source. A
// missing directory is not an error; it just yields no files.
type Roots struct {
	HomeDir string
}

// DefaultRoots locates session stores relative to the user's home.
func DefaultRoots() (Roots, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Roots{}, err
	}
	return Roots{HomeDir: home}, nil
}

func (r Roots) openCodeDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(r.HomeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "opencode", "storage", "message")
}

func (r Roots) claudeDir() string {
	return filepath.Join(r.HomeDir, ".claude", "projects")
}

func (r Roots) codexDir() string {
	codexHome := os.Getenv("CODEX_HOME")
	if codexHome == "" {
		codexHome = filepath.Join(r.HomeDir, ".codex")
	}
	return filepath.Join(codexHome, "sessions")
}

func (r Roots) geminiDir() string {
	return filepath.Join(r.HomeDir, ".gemini", "tmp")
}

func (r Roots) cursorDir() string {
	return filepath.Join(r.HomeDir, ".config", "tokgraph", "cursor-cache")
}

// FindFiles returns the session files for one source. Unknown sources and
// absent roots return an empty slice.
func (r Roots) FindFiles(source string) []string {
	switch source {
	case model.SourceOpenCode:
		return findFiles(r.openCodeDir(), func(name string) bool {
			return strings.HasSuffix(name, ".json")
		})
	case model.SourceClaude:
		return findFiles(r.claudeDir(), func(name string) bool {
			return strings.HasSuffix(name, ".jsonl")
		})
	case model.SourceCodex:
		return findFiles(r.codexDir(), func(name string) bool {
			return strings.HasSuffix(name, ".jsonl")
		})
	case model.SourceGemini:
		return findFiles(r.geminiDir(), func(name string) bool {
			return strings.HasPrefix(name, "session-") && strings.HasSuffix(name, ".json")
		})
	case model.SourceCursor:
		return findFiles(r.cursorDir(), isCursorUsageFile)
	default:
		return nil
	}
}

func findFiles(root string, match func(name string) bool) []string {
	if _, err := os.Stat(root); err != nil {
		return nil
	}

	var files []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// isCursorUsageFile accepts usage.csv and per-account usage.<account>.csv
// files, excluding legacy backups.
func isCursorUsageFile(name string) bool {
	if name == "usage.csv" {
		return true
	}
	if !strings.HasPrefix(name, "usage.") || !strings.HasSuffix(name, ".csv") {
		return false
	}
	return !strings.HasPrefix(name, "usage.backup")
}

// parseTimestampValue interprets a JSON value as an instant: RFC3339
// strings, Unix seconds or Unix milliseconds (values >= 1e12 are taken as
// milliseconds).
func parseTimestampValue(value gjson.Result) (time.Time, bool) {
	if !value.Exists() {
		return time.Time{}, false
	}
	if value.Type == gjson.String {
		if ts, err := time.Parse(time.RFC3339, value.String()); err == nil {
			return ts, true
		}
	}
	numeric := value.Int()
	if numeric == 0 {
		return time.Time{}, false
	}
	if numeric > 1_000_000_000_000 {
		return time.UnixMilli(numeric).UTC(), true
	}
	return time.Unix(numeric, 0).UTC(), true
}

func fileModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now().UTC()
	}
	return info.ModTime().UTC()
}
