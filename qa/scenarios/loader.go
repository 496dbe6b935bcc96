package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/taskplan/core/model"
)

// Expected describes the outcome a scenario must reproduce. Nil fields are not checked.
type Expected struct {
	TotalBenefit *float64          `yaml:"total_benefit"`
	Scheduled    []string          `yaml:"scheduled"`
	Slots        map[string]int    `yaml:"slots,omitempty"`
	Rejected     []string          `yaml:"rejected"`
	Reasons      map[string]string `yaml:"reasons,omitempty"`
	Probes       *int              `yaml:"probes,omitempty"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Horizon     int          `yaml:"horizon"`
	SlotFinder  string       `yaml:"slot_finder,omitempty"`
	Tasks       []model.Task `yaml:"tasks"`
	Expected    Expected     `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml file of dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
