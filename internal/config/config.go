// Package config loads the CLI's optional datadiff.toml file: named
// connection profiles and default bisection parameters, read with
// BurntSushi/toml. Only cmd/datadiff reads this; the
// core engine (internal/differ, internal/segment) takes no config file
// and is driven entirely by explicit Go values.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Profile is one named connection entry: a dialect and a driver-
// specific DSN/connection string.
type Profile struct {
	Dialect string `toml:"dialect"`
	DSN     string `toml:"dsn"`
}

// Defaults holds the bisection parameters a run uses absent explicit
// flags, matching internal/differ.Config's fields.
type Defaults struct {
	BisectionFactor    int `toml:"bisection_factor"`
	BisectionThreshold int `toml:"bisection_threshold"`
	MaxThreadpoolSize  int `toml:"max_threadpool_size"`
}

// File is the root shape of datadiff.toml.
type File struct {
	Profiles map[string]Profile `toml:"profiles"`
	Defaults Defaults           `toml:"defaults"`
}

// Load parses path into a File. A missing file is not an error: callers
// that didn't pass --config get a zero File and fall back entirely to
// flags.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &File{}, nil
	}

	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return &f, nil
}

// Resolve looks up a named profile.
func (f *File) Resolve(name string) (Profile, bool) {
	if f == nil {
		return Profile{}, false
	}
	p, ok := f.Profiles[name]
	return p, ok
}
