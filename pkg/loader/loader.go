// Package loader finds and reads date facet payload files.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/datefacet/pkg/metrics"
	"github.com/vanderheijden86/datefacet/pkg/model"
)

// DataFileEnvVar names a payload file to use when none is given explicitly.
const DataFileEnvVar = "DATEFACET_DATA"

// PreferredDataNames is the lookup order inside a directory.
var PreferredDataNames = []string{"facets.json", "facet-data.json", "datefacet.json"}

// ResolveDataPath picks the payload file: explicit wins, then
// DATEFACET_DATA, then the preferred names in dir (cwd when empty).
func ResolveDataPath(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(DataFileEnvVar); env != "" {
		return env, nil
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = wd
	}
	return FindDataPath(dir)
}

// FindDataPath locates a payload file in dir. Preferred names win over
// other .json files; backups and empty files are skipped.
func FindDataPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.HasPrefix(name, ".") {
			continue
		}
		candidates = append(candidates, name)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredDataNames {
		for _, name := range candidates {
			if name != preferred {
				continue
			}
			if path, ok := nonEmpty(name); ok {
				return path, nil
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("no payload JSON file found in %s", dir)
}

// LoadPayload reads and decodes the payload at path.
func LoadPayload(path string) (model.Payload, error) {
	defer metrics.Timer(metrics.PayloadLoad)()

	f, err := os.Open(path)
	if err != nil {
		return model.Payload{}, fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()

	p, err := ParsePayload(f)
	if err != nil {
		return model.Payload{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePayload decodes a payload document from r.
func ParsePayload(r io.Reader) (model.Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Payload{}, fmt.Errorf("read payload: %w", err)
	}
	return model.DecodePayload(stripBOM(data))
}

// WritePayload atomically replaces path with p.
func WritePayload(path string, p model.Payload) error {
	data, err := model.EncodePayload(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace payload: %w", err)
	}
	return nil
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}
