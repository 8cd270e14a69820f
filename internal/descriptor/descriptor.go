// Package descriptor loads the two YAML documents the CLI surface
// consumes: the declarative cluster description (hosts, aggregators,
// samplers, producers, updaters, stores) and the cluster/datastore
// configuration (member list, key prefix). Both are read into a
// generic tree rather than a typed struct, since the Topology Model
// (internal/topology) already owns the field-level validation — this
// package's only job is turning bytes on disk into the
// map[string]interface{} shape that package expects.
package descriptor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDescription reads the declarative description file at path and
// returns its top-level sections as a generic tree, suitable for
// topology.Build.
func LoadDescription(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: reading description %s: %w", path, err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("descriptor: parsing description %s: %w", path, err)
	}
	return tree, nil
}

// ClusterMember is one datastore endpoint from the cluster config's
// `members` list.
type ClusterMember struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ClusterConfig is the `cluster: <prefix>` / `members: [...]` document
// naming the datastore ensemble. Only the first member is dialed; the
// rest are reserved for future failover.
type ClusterConfig struct {
	Cluster string          `yaml:"cluster"`
	Members []ClusterMember `yaml:"members"`
}

// LoadClusterConfig reads and validates the cluster config file at
// path.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: reading cluster config %s: %w", path, err)
	}
	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("descriptor: parsing cluster config %s: %w", path, err)
	}
	if cfg.Cluster == "" {
		return nil, fmt.Errorf("descriptor: %s: missing required key %q", path, "cluster")
	}
	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("descriptor: %s: missing required key %q", path, "members")
	}
	return &cfg, nil
}

// MemberAddrs returns every member as a dialable "host:port" string,
// in file order.
func (c *ClusterConfig) MemberAddrs() []string {
	addrs := make([]string, len(c.Members))
	for i, m := range c.Members {
		addrs[i] = fmt.Sprintf("%s:%d", m.Host, m.Port)
	}
	return addrs
}

// PrimaryAddr returns the first member as a dialable "host:port"
// string — the only one the controller actually connects to; the rest
// of the list is reserved for future failover.
func (c *ClusterConfig) PrimaryAddr() string {
	m := c.Members[0]
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}
