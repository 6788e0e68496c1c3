// Package env builds the environment handed to plugin processes
package env

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Loader merges a base environment with the contents of an envdir
type Loader struct {
	original []string
	envdir   string
}

// NewLoader creates a Loader. If environ is empty, the environment of
// the current process is used as the base
func NewLoader(envdir string, environ ...string) *Loader {
	if len(environ) == 0 {
		environ = os.Environ()
	}
	return &Loader{
		original: environ,
		envdir:   envdir,
	}
}

func (l *Loader) Envdir() string {
	return l.envdir
}

// Environ returns the merged environment as KEY=VALUE pairs: the base
// environment, overridden by the envdir, overridden by extra.
// Keys keep the position of their first appearance.
// If the envdir cannot be read, the environment is returned without it
// along with the error
func (l *Loader) Environ(extra ...string) ([]string, error) {
	var keys []string
	values := make(map[string]string)
	set := func(k, v string) {
		if _, ok := values[k]; !ok {
			keys = append(keys, k)
		}
		values[k] = v
	}

	for _, kv := range l.original {
		if k, v, ok := split(kv); ok {
			set(k, v)
		}
	}

	var err error
	if l.envdir != "" {
		var fromDir map[string]string
		fromDir, err = ReadDir(l.envdir)
		names := make([]string, 0, len(fromDir))
		for k := range fromDir {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			set(k, fromDir[k])
		}
	}

	for _, kv := range extra {
		if k, v, ok := split(kv); ok {
			set(k, v)
		}
	}

	environ := make([]string, len(keys))
	for i, k := range keys {
		environ[i] = k + "=" + values[k]
	}
	return environ, err
}

// ReadDir loads an envdir: every regular file in dir defines a
// variable named after the file, whose value is the first line of the
// file with surrounding whitespace removed. Subdirectories are skipped
func ReadDir(dir string) (map[string]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat envdir %s", dir)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("envdir %s is not a directory", dir)
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read envdir %s", dir)
	}

	m := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		buf, err := ioutil.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			// Ignore unreadable files
			continue
		}
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			buf = buf[:i]
		}
		m[e.Name()] = string(bytes.TrimSpace(buf))
	}
	return m, nil
}

func split(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}
