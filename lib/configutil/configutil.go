package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// splitExt splits a file name at its last dot.
func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// ReadConfig decodes the json5 file at `name`, then merges a
// `<name>.local.<ext>` file sitting next to it on top of it when one
// exists. Local overrides win field by field. Returns os.ErrNotExist
// when neither file is present.
func ReadConfig[T any](name string) (T, error) {
	var cfg T
	found := false

	dirname := filepath.Dir(name)
	basename := filepath.Base(name)
	prefixname, ext := splitExt(basename)

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if len(defaultFile) > 0 {
		err = json5.Unmarshal(defaultFile, &cfg)
		if err != nil {
			return cfg, err
		}
		found = true
	}

	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
	localFile, err := os.ReadFile(localFilepath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if len(localFile) > 0 {
		var override T
		err = json5.Unmarshal(localFile, &override)
		if err != nil {
			return cfg, err
		}
		err = mergo.Merge(&cfg, override, mergo.WithOverride)
		if err != nil {
			return cfg, err
		}
		slog.Info("applying local config overrides", "path", localFilepath)
		found = true
	}

	if !found {
		return cfg, os.ErrNotExist
	}
	return cfg, nil
}

// ReadRecursively walks up from the cwd toward the filesystem root
// until a config matching the name is found.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return defaultOut, err
		}
		return config, nil
	}

	return defaultOut, os.ErrNotExist
}
