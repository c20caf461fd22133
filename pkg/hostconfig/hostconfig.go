// Package hostconfig manages the sbatchman.conf file at the root directory
// (spec §5 "The sbatchman.conf file at the root stores cluster_name for
// this host and is read on every open").
package hostconfig

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

const fileName = "sbatchman.conf"

// Config is the parsed sbatchman.conf contents for one root directory.
type Config struct {
	path        string
	ClusterName string
}

// Load reads <root>/sbatchman.conf, returning an empty Config if the file
// doesn't exist yet (spec §5: read on every open, not just after
// set_cluster_name has run).
func Load(root string) (*Config, error) {
	path := filepath.Join(root, fileName)
	c := &Config{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfigIO, "hostconfig.Load", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "cluster_name" {
			c.ClusterName = strings.TrimSpace(val)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.New(apperrors.KindConfigIO, "hostconfig.Load", path, err)
	}
	return c, nil
}

// SetClusterName implements the library surface's set_cluster_name (spec
// §6): sets cluster_name and atomically persists the file (temp+rename,
// pkg/statedir.WriteMetadata's pattern).
func (c *Config) SetClusterName(name string) error {
	c.ClusterName = name
	return c.save()
}

// GetClusterName implements the library surface's get_cluster_name.
func (c *Config) GetClusterName() string {
	return c.ClusterName
}

func (c *Config) save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.New(apperrors.KindConfigIO, "hostconfig.save", c.path, err)
	}

	content := "cluster_name=" + c.ClusterName + "\n"

	tmp, err := os.CreateTemp(dir, fileName+".tmp.*")
	if err != nil {
		return apperrors.New(apperrors.KindConfigIO, "hostconfig.save", c.path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return apperrors.New(apperrors.KindConfigIO, "hostconfig.save", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.New(apperrors.KindConfigIO, "hostconfig.save", c.path, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return apperrors.New(apperrors.KindConfigIO, "hostconfig.save", c.path, err)
	}
	return nil
}
