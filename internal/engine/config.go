package engine

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/thread"
)

// DefaultUnit is the computing unit of threads no unit prefix claims.
const DefaultUnit = "local"

// Config holds the engine's permission and placement policy.
type Config struct {
	// DenyCreate lists path prefixes under which no thread may be created.
	DenyCreate []string `yaml:"deny_create"`

	// PerformanceGrants lists path prefixes of threads allowed to grant or
	// take the Performance policy. The root thread always may.
	PerformanceGrants []string `yaml:"performance_grants"`

	// Units maps a computing unit name to the path prefixes placed on it.
	// TransferTime only works between threads on the same unit.
	Units map[string][]string `yaml:"units"`

	// MaxThreadsPerOwner caps live threads per owner. 0 disables the cap.
	MaxThreadsPerOwner int `yaml:"max_threads_per_owner"`

	// RootPath is the path of the boot thread.
	RootPath string `yaml:"root_path"`

	denyCreate []ident.Path
	grants     []ident.Path
	units      []unitPrefix
	root       ident.Path
}

type unitPrefix struct {
	name   string
	prefix ident.Path
}

// DefaultConfig returns a permissive configuration: no creation
// restrictions, Performance reserved for the root thread, one unit.
func DefaultConfig() Config {
	return Config{
		MaxThreadsPerOwner: DefaultMaxThreads,
		RootPath:           "root",
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// compile parses the textual prefixes. Called by ParseConfig and New.
func (c *Config) compile() error {
	var err error
	if c.denyCreate, err = parsePrefixes("deny_create", c.DenyCreate); err != nil {
		return err
	}
	if c.grants, err = parsePrefixes("performance_grants", c.PerformanceGrants); err != nil {
		return err
	}
	c.units = nil
	for name, prefixes := range c.Units {
		paths, err := parsePrefixes("units."+name, prefixes)
		if err != nil {
			return err
		}
		for _, p := range paths {
			c.units = append(c.units, unitPrefix{name: name, prefix: p})
		}
	}
	// Longest prefix wins; ties break by name for a stable order.
	slices.SortFunc(c.units, func(a, b unitPrefix) int {
		if n := cmp.Compare(b.prefix.Len(), a.prefix.Len()); n != 0 {
			return n
		}
		return cmp.Compare(a.name, b.name)
	})

	root := c.RootPath
	if root == "" {
		root = "root"
	}
	if c.root, err = ident.ParsePath(root); err != nil {
		return fmt.Errorf("config root_path: %w", err)
	}
	return nil
}

func parsePrefixes(field string, raw []string) ([]ident.Path, error) {
	out := make([]ident.Path, 0, len(raw))
	for _, s := range raw {
		p, err := ident.ParsePath(s)
		if err != nil {
			return nil, fmt.Errorf("config %s: %q: %w", field, s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesAny(p ident.Path, prefixes []ident.Path) bool {
	for _, pre := range prefixes {
		if p.HasPrefix(pre) {
			return true
		}
	}
	return false
}

// creationAllowed reports whether a thread may be created at p.
func (c *Config) creationAllowed(p ident.Path) bool {
	return !matchesAny(p, c.denyCreate)
}

// mostSupported returns the highest policy a thread at p may use.
func (c *Config) mostSupported(p ident.Path, isRoot bool) thread.PerformancePolicy {
	if isRoot || matchesAny(p, c.grants) {
		return thread.Performance
	}
	return thread.Normal
}

// unitOf returns the computing unit a thread at p runs on.
func (c *Config) unitOf(p ident.Path) string {
	for _, u := range c.units {
		if p.HasPrefix(u.prefix) {
			return u.name
		}
	}
	return DefaultUnit
}
