// Package project initializes a mollusk repository directory: the data
// directory, the default settings file, and the content area.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// settingsTemplate is the config.yaml written into a fresh repository.
var settingsTemplate = template.Must(template.New("settings").Parse(`# {{.Name}} settings
data_dir: {{.DataDir}}

store:
  backend: sqlite
  sqlite_path: {{.SQLitePath}}

logging:
  level: info
  format: text
`))

type settingsData struct {
	Name       string
	DataDir    string
	SQLitePath string
}

// Init creates the repository layout at dir. An existing settings file is
// left untouched so re-running init is safe.
func Init(dir, name string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	for _, sub := range []string{abs, filepath.Join(abs, "content")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	settingsPath := filepath.Join(abs, "config.yaml")
	if _, err := os.Stat(settingsPath); err == nil {
		return nil
	}
	f, err := os.Create(settingsPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", settingsPath, err)
	}
	defer f.Close()
	return settingsTemplate.Execute(f, settingsData{
		Name:       name,
		DataDir:    abs,
		SQLitePath: filepath.Join(abs, "mollusk.sqlite"),
	})
}
