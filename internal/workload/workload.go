// Package workload loads the YAML description of a demo task tree for the
// run command: a task name plus weighted subtasks with synthetic chunked
// work.
package workload

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/task"
)

// Workload describes one task tree to run.
type Workload struct {
	Task     string        `yaml:"task"`
	Subtasks []SubtaskSpec `yaml:"subtasks"`
}

// SubtaskSpec declares one subtask and the synthetic work its body performs:
// Chunks units of work, each taking ChunkDuration, with one checkpoint and
// one progress update per chunk.
type SubtaskSpec struct {
	Name          string        `yaml:"name"`
	Weight        WeightField   `yaml:"weight"`
	Chunks        int           `yaml:"chunks"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
}

// WeightField accepts either a named level ("low", "medium", "high") or a
// positive number as a custom weight.
type WeightField struct {
	domain.Weight
}

// UnmarshalYAML implements yaml.Unmarshaler
func (w *WeightField) UnmarshalYAML(node *yaml.Node) error {
	var num float64
	if err := node.Decode(&num); err == nil {
		weight, err := domain.CustomWeight(num)
		if err != nil {
			return err
		}
		w.Weight = weight
		return nil
	}

	var name string
	if err := node.Decode(&name); err != nil {
		return fmt.Errorf("weight must be a name or a number: %w", err)
	}
	weight, err := domain.ParseWeight(name)
	if err != nil {
		return err
	}
	w.Weight = weight
	return nil
}

// Load reads and validates a workload file.
func Load(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a workload document.
func Parse(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks the workload for usable values and fills defaults.
func (w *Workload) Validate() error {
	if w.Task == "" {
		w.Task = "demo"
	}
	seen := make(map[string]bool, len(w.Subtasks))
	for i := range w.Subtasks {
		s := &w.Subtasks[i]
		if s.Name == "" {
			return fmt.Errorf("subtask %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("subtask %q declared twice", s.Name)
		}
		seen[s.Name] = true
		if err := s.Weight.Validate(); err != nil {
			return fmt.Errorf("subtask %q: %w", s.Name, err)
		}
		if s.Chunks <= 0 {
			s.Chunks = 10
		}
		if s.ChunkDuration <= 0 {
			s.ChunkDuration = 100 * time.Millisecond
		}
	}
	return nil
}

// Declarations converts the workload into the task declarations it implies.
func (w *Workload) Declarations() []task.Declaration[string] {
	decls := make([]task.Declaration[string], len(w.Subtasks))
	for i, s := range w.Subtasks {
		decls[i] = task.Declaration[string]{Name: s.Name, Weight: s.Weight.Weight}
	}
	return decls
}

// Default returns the built-in workload used when no file is given.
func Default() *Workload {
	return &Workload{
		Task: "demo pipeline",
		Subtasks: []SubtaskSpec{
			{Name: "fetch", Weight: WeightField{domain.WeightLow}, Chunks: 20, ChunkDuration: 80 * time.Millisecond},
			{Name: "transform", Weight: WeightField{domain.WeightHigh}, Chunks: 40, ChunkDuration: 120 * time.Millisecond},
			{Name: "store", Weight: WeightField{domain.WeightMedium}, Chunks: 25, ChunkDuration: 100 * time.Millisecond},
		},
	}
}
