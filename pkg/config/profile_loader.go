package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is a named treasury policy profile: the defaults a host applies
// when opening projects.
type Profile struct {
	Name             string `yaml:"name" json:"name"`
	Unit             string `yaml:"unit" json:"unit"`
	DefaultThreshold int    `yaml:"default_threshold" json:"default_threshold"`
	Description      string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LoadProfile loads a profile YAML by name. It searches the profiles
// directory for profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}
	if profile.DefaultThreshold < 1 {
		return nil, fmt.Errorf("profile %q: default_threshold must be >= 1", name)
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		name := strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		profile, err := LoadProfile(profilesDir, name)
		if err != nil {
			return nil, err
		}
		profiles[profile.Name] = profile
	}

	return profiles, nil
}
