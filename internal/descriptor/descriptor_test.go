package descriptor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ovis-hpc/maestro/internal/descriptor"
	"github.com/stretchr/testify/assert"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDescription(t *testing.T) {
	ast := assert.New(t)
	path := writeTemp(t, "description.yaml", `
hosts:
  - names: "nid[01-02]"
    hosts: "nid[01-02]"
    ports: "10001"
`)
	tree, err := descriptor.LoadDescription(path)
	ast.Nil(err)
	ast.Contains(tree, "hosts")
}

func TestLoadClusterConfig(t *testing.T) {
	ast := assert.New(t)
	path := writeTemp(t, "cluster.yaml", `
cluster: prod
members:
  - host: zk1.example.com
    port: 2181
  - host: zk2.example.com
    port: 2181
`)
	cfg, err := descriptor.LoadClusterConfig(path)
	ast.Nil(err)
	ast.Equal("prod", cfg.Cluster)
	ast.Equal([]string{"zk1.example.com:2181", "zk2.example.com:2181"}, cfg.MemberAddrs())
	ast.Equal("zk1.example.com:2181", cfg.PrimaryAddr())
}

func TestLoadClusterConfigMissingCluster(t *testing.T) {
	ast := assert.New(t)
	path := writeTemp(t, "cluster.yaml", `
members:
  - host: zk1.example.com
    port: 2181
`)
	_, err := descriptor.LoadClusterConfig(path)
	ast.NotNil(err)
}

func TestLoadClusterConfigMissingMembers(t *testing.T) {
	ast := assert.New(t)
	path := writeTemp(t, "cluster.yaml", `
cluster: prod
`)
	_, err := descriptor.LoadClusterConfig(path)
	ast.NotNil(err)
}
