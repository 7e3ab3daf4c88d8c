// Package config holds the external planner's invocation configuration.
// The core inspects no environment of its own (spec.md §6); the caller
// builds a Config, typically by loading it from YAML, and hands it to
// the orchestrator.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PlannerConfig describes how to invoke the external planner process.
type PlannerConfig struct {
	// Command is the argv of the planner binary, e.g.
	// ["tamer", "--search", "astar"]. Command[0] is resolved via PATH.
	Command []string `yaml:"command"`

	// WorkDir is the directory the domain/problem files are written to
	// and the planner subprocess runs in. Empty means a fresh temporary
	// directory per solve call, removed when the call returns.
	WorkDir string `yaml:"work_dir"`

	// Timeout bounds a single solve() call. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// DebugDumpDir, when non-empty, is the directory the orchestrator
	// writes the compiled robustness problem's domain/problem PDDL
	// files to before invoking the planner, mirroring the original
	// implementation's debug dump of domain_rv.pddl / problem_rv.pddl.
	DebugDumpDir string `yaml:"debug_dump_dir"`
}

// Load reads a PlannerConfig from a YAML file at path.
func Load(path string) (*PlannerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg PlannerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("config: %s: command must not be empty", path)
	}
	return &cfg, nil
}
