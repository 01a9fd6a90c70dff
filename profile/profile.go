// Package profile loads run profiles: the settings of a dead-code
// elimination run kept next to a project's build files.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile represents the configuration of a run. Command line flags
// override every field that is set.
type Profile struct {
	Entry        string   `yaml:"entry"`
	Exclude      []string `yaml:"exclude"`
	OptIRQ       bool     `yaml:"opt_irq"`
	Output       string   `yaml:"output"`
	Format       string   `yaml:"format"`
	ReportOutput string   `yaml:"report_output"`
	Inputs       []string `yaml:"inputs"`
	Verbose      bool     `yaml:"verbose"`
	Debug        bool     `yaml:"debug"`
}

// LoadProfile loads a profile from a YAML file.
func LoadProfile(filename string) (*Profile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var profile Profile
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}
