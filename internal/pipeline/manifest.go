package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is written to a stage directory once the stage completed.
// The leading underscore keeps it out of table resolution.
const ManifestFile = "_stage.yaml"

// Manifest records what a completed stage wrote.
type Manifest struct {
	RunID     string          `yaml:"run_id"`
	Stage     string          `yaml:"stage"`
	CreatedAt time.Time       `yaml:"created_at"`
	Tables    []ManifestTable `yaml:"tables"`
}

// ManifestTable is one table entry of a manifest.
type ManifestTable struct {
	Name    string   `yaml:"name"`
	Source  string   `yaml:"source,omitempty"`
	Files   []string `yaml:"files"`
	Rows    int      `yaml:"rows"`
	Columns []string `yaml:"columns,omitempty"`
}

// WriteManifest writes m to dir/_stage.yaml, replacing an older manifest.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads dir/_stage.yaml. A missing manifest is reported with
// an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
