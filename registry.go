package starter

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lestrrat-go/engine-starter/listener"
	"github.com/pkg/errors"
)

// Registry owns one Supervisor per plugin, assigns ports and drives
// start and stop of all of them
type Registry struct {
	options     []Option
	logger      *slog.Logger
	supervisors []*Supervisor
	byID        map[string]*Supervisor
}

// NewRegistry creates an empty Registry. The options are applied to
// every supervisor created by the registry, before the options of the
// plugin itself
func NewRegistry(options ...Option) *Registry {
	r := &Registry{
		options: options,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		byID:    make(map[string]*Supervisor),
	}
	for _, opt := range options {
		if opt.Name() == optkeyLogger {
			if l := opt.Value().(*slog.Logger); l != nil {
				r.logger = l
			}
		}
	}
	return r
}

// Load adds every plugin listed in the manifest
func (r *Registry) Load(m *Manifest) error {
	for _, p := range m.Plugins {
		if _, err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Add creates a supervisor for the plugin
func (r *Registry) Add(p PluginSpec) (*Supervisor, error) {
	if p.ID == "" {
		return nil, errors.New("plugin id is required")
	}
	if _, ok := r.byID[p.ID]; ok {
		return nil, errors.Errorf("plugin '%s' is already registered", p.ID)
	}

	pluginOptions, err := p.options()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid plugin '%s'", p.ID)
	}

	options := make([]Option, 0, len(r.options)+len(pluginOptions))
	options = append(options, r.options...)
	options = append(options, pluginOptions...)

	s := New(p.ID, options...)
	r.supervisors = append(r.supervisors, s)
	r.byID[p.ID] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Supervisor, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Supervisors returns the supervisors in registration order
func (r *Registry) Supervisors() []*Supervisor {
	return append([]*Supervisor(nil), r.supervisors...)
}

// StartAll starts every plugin that is not running yet, in
// registration order. Plugins without a port get a free one first.
// A plugin failing to start does not keep the others from starting;
// the returned error names all of the plugins that failed
func (r *Registry) StartAll() error {
	var failed []string
	for _, s := range r.supervisors {
		if s.IsRunning() {
			continue
		}
		if err := r.assignPort(s); err != nil {
			r.logger.Error("failed to assign port", "plugin", s.ID(), "error", err)
			failed = append(failed, s.ID())
			continue
		}
		if !s.Start() {
			failed = append(failed, s.ID())
		}
	}

	if len(failed) > 0 {
		return errors.Errorf("failed to start plugins: %s", strings.Join(failed, ", "))
	}
	return nil
}

// StopAll stops every plugin, in reverse registration order
func (r *Registry) StopAll() error {
	var failed []string
	for i := len(r.supervisors) - 1; i >= 0; i-- {
		s := r.supervisors[i]
		if !s.Stop() {
			failed = append(failed, s.ID())
		}
	}

	if len(failed) > 0 {
		return errors.Errorf("failed to stop plugins: %s", strings.Join(failed, ", "))
	}
	return nil
}

// assignPort picks a free port for plugins that have none, unless
// their command line already names one
func (r *Registry) assignPort(s *Supervisor) error {
	if s.Port() != 0 {
		return nil
	}
	for _, arg := range s.Command() {
		if arg == portFlag {
			return nil
		}
	}

	port, err := listener.Allocate(s.Address())
	if err != nil {
		return errors.Wrapf(err, "failed to allocate port on %s", s.Address())
	}
	s.SetPort(port)
	r.logger.Debug("assigned port", "plugin", s.ID(), "address", s.Address(), "port", port)
	return nil
}
