package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirName is the per-project state directory.
	DirName = ".huddle"
	// DBFile is the SQLite database inside DirName.
	DBFile = "huddle.db"
	// JournalFile is the change feed journal inside DirName.
	JournalFile = "events.jsonl"
)

// Project represents a huddle workspace.
type Project struct {
	Root   string
	DBPath string
}

// Dir returns the project's state directory.
func (p Project) Dir() string {
	return filepath.Dir(p.DBPath)
}

// JournalPath returns the path of the change feed journal.
func (p Project) JournalPath() string {
	return filepath.Join(p.Dir(), JournalFile)
}

// DiscoverProject walks up from startDir to find a .huddle directory.
func DiscoverProject(startDir string) (Project, error) {
	current := startDir
	if current == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Project{}, err
		}
		current = cwd
	}
	current, err := filepath.Abs(current)
	if err != nil {
		return Project{}, err
	}

	for {
		dir := filepath.Join(current, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			dbPath := filepath.Join(dir, DBFile)
			if _, err := os.Stat(dbPath); err != nil {
				return Project{}, fmt.Errorf("huddle database not found. Run 'huddle init' first")
			}
			return Project{Root: current, DBPath: dbPath}, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return Project{}, fmt.Errorf("not initialized. Run 'huddle init' first")
		}
		current = parent
	}
}

// InitProject initializes a new huddle workspace at dir.
func InitProject(dir string, force bool) (Project, error) {
	root := dir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Project{}, err
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Project{}, err
	}

	stateDir := filepath.Join(root, DirName)
	dbPath := filepath.Join(stateDir, DBFile)

	if info, err := os.Stat(stateDir); err == nil && info.IsDir() && !force {
		return Project{}, fmt.Errorf("already initialized. Use --force to reinitialize")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return Project{}, err
	}
	EnsureGitignore(stateDir)

	if force {
		for _, name := range []string{DBFile, JournalFile} {
			if err := os.Remove(filepath.Join(stateDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return Project{}, err
			}
		}
	}

	return Project{Root: root, DBPath: dbPath}, nil
}

// EnsureGitignore ensures the state directory ignores sqlite and journal files.
func EnsureGitignore(stateDir string) {
	gitignore := filepath.Join(stateDir, ".gitignore")
	entries := []string{"*.db", "*.db-wal", "*.db-shm", JournalFile, ".env"}

	data, err := os.ReadFile(gitignore)
	if err != nil {
		_ = os.WriteFile(gitignore, []byte(strings.Join(entries, "\n")+"\n"), 0o644)
		return
	}
	content := string(data)

	lines := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		lines[line] = true
	}

	missing := []string{}
	for _, entry := range entries {
		if !lines[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		content += "\n"
	}
	content += strings.Join(missing, "\n") + "\n"
	_ = os.WriteFile(gitignore, []byte(content), 0o644)
}
