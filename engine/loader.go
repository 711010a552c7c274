package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/flowforge/dataflow/engine/workflow"
)

// LoadWorkflowDir reads every .json/.yaml/.yml file directly under dir
// and decodes each as a workflow.Config (SPEC_FULL.md §3, "wire-
// compatible config loading": the same schema loads either surface
// syntax). Files are read in lexical filename order so that, absent an
// explicit "priority", declaration order is deterministic across a
// directory listing.
func LoadWorkflowDir(afs afero.Fs, dir string) ([]*workflow.Config, error) {
	entries, err := afero.ReadDir(afs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".json" || ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	configs := make([]*workflow.Config, 0, len(names))
	for _, name := range names {
		cfg, err := loadWorkflowFile(afs, filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func loadWorkflowFile(afs afero.Fs, path string) (*workflow.Config, error) {
	raw, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, err
	}

	cfg := &workflow.Config{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode json workflow: %w", err)
		}
		return cfg, nil
	}

	// FunctionConfig's tagged-union decoding lives on UnmarshalJSON
	// (workflow/function.go) so every surface syntax funnels through one
	// decoder: bridge YAML through a generic tree and re-encode as JSON
	// rather than duplicating the dispatch in a yaml.Unmarshaler.
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode yaml workflow: %w", err)
	}
	bridged, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to bridge yaml workflow to json: %w", err)
	}
	if err := json.Unmarshal(bridged, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode bridged yaml workflow: %w", err)
	}
	return cfg, nil
}
