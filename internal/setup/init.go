// Package setup handles relay project initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/taskrelay/relay/internal/fsio"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/templates"
)

// Run initializes the .relay/ directory tree in the given project
// directory: the configured areas, a default config.yaml, the schema
// files, and an empty queue index.
func Run(projectDir, projectName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, model.RelayDirName)
	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	cfg, err := generateConfig(absDir, projectName)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}
	paths := cfg.Paths(base)

	dirs := []string{
		paths.Pending,
		paths.Processing,
		paths.Output,
		paths.Archive,
		paths.Logs,
		paths.Schema,
		paths.Quarantine,
		paths.Locks,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsio.AtomicWrite(filepath.Join(base, model.ConfigFileName), data); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	for _, name := range []string{"task_schema.md", "result_schema.md"} {
		if err := copyTemplateFile(filepath.Join("schema", name), filepath.Join(paths.Schema, name)); err != nil {
			return err
		}
	}

	st := state.NewStore(paths.Index)
	if err := st.Save(state.NewQueueState()); err != nil {
		return fmt.Errorf("write empty index: %w", err)
	}

	return nil
}

func copyTemplateFile(name, dst string) error {
	data, err := fs.ReadFile(templates.FS, filepath.ToSlash(name))
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func generateConfig(projectDir, projectName string) (model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "config.yaml")
	if err != nil {
		return model.Config{}, fmt.Errorf("read config template: %w", err)
	}

	cfg := model.DefaultConfig()
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config template: %w", err)
	}

	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	cfg.Relay.ProjectRoot = projectDir
	cfg.Relay.Created = time.Now().Format(time.RFC3339)

	return cfg, nil
}
