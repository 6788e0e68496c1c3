package starter

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest lists the engine plugins a Registry runs
type Manifest struct {
	Plugins []PluginSpec `yaml:"plugins"`
}

// PluginSpec describes one engine plugin
type PluginSpec struct {
	ID             string   `yaml:"id"`
	Command        []string `yaml:"command"`
	Address        string   `yaml:"address,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	SupportedSlots []int    `yaml:"supported_slots,omitempty"`
	Dir            string   `yaml:"dir,omitempty"`
	Envdir         string   `yaml:"envdir,omitempty"`
	StopSignal     string   `yaml:"stop_signal,omitempty"`
	StopTimeout    string   `yaml:"stop_timeout,omitempty"`
}

// LoadManifest reads and validates a manifest file
func LoadManifest(path string) (*Manifest, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}
	m, err := ParseManifest(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	return m, nil
}

func ParseManifest(buf []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every plugin has a unique id and that the
// optional fields parse. An empty command is allowed; starting such a
// plugin fails and is reported like any other start failure
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Plugins))
	for i, p := range m.Plugins {
		if p.ID == "" {
			return errors.Errorf("plugin #%d has no id", i)
		}
		if _, ok := seen[p.ID]; ok {
			return errors.Errorf("duplicate plugin id '%s'", p.ID)
		}
		seen[p.ID] = struct{}{}

		if p.Port < 0 || p.Port > 65535 {
			return errors.Errorf("plugin '%s': port %d out of range", p.ID, p.Port)
		}
		if _, err := p.options(); err != nil {
			return errors.Wrapf(err, "plugin '%s'", p.ID)
		}
	}
	return nil
}

// options converts the spec into supervisor options
func (p PluginSpec) options() ([]Option, error) {
	list := []Option{
		WithCommand(p.Command...),
		WithPort(p.Port),
	}
	if p.Address != "" {
		list = append(list, WithAddress(p.Address))
	}
	if len(p.SupportedSlots) > 0 {
		list = append(list, WithSupportedSlots(p.SupportedSlots...))
	}
	if p.Dir != "" {
		list = append(list, WithDir(p.Dir))
	}
	if p.Envdir != "" {
		list = append(list, WithEnvdir(p.Envdir))
	}
	if p.StopSignal != "" {
		sig, err := SignalFromName(p.StopSignal)
		if err != nil {
			return nil, err
		}
		list = append(list, WithStopSignal(sig))
	}
	if p.StopTimeout != "" {
		d, err := time.ParseDuration(p.StopTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse stop_timeout")
		}
		list = append(list, WithStopTimeout(d))
	}
	return list, nil
}
