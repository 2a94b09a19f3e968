package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.Nil(t, NewDefaultConfig().Validate())
	assert.Nil(t, NewTestConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []func(c *Config){
		func(c *Config) { c.Addr = "" },
		func(c *Config) { c.StatusAddr = c.Addr },
		func(c *Config) { c.Engine = "badger" },
		func(c *Config) { c.ShardCount = -1 },
		func(c *Config) { c.Backoff = NewDuration(0) },
		func(c *Config) { c.MaxQPS = -1 },
		func(c *Config) { c.Alloc.Start, c.Alloc.End = 10, 9 },
		func(c *Config) { c.Alloc.End = 1 << 24 },
		func(c *Config) { c.Alloc.Concurrency = 0 },
		func(c *Config) { c.WriteThrough.Enabled, c.WriteThrough.RedisAddr = true, "" },
		func(c *Config) { c.WriteThrough.Enabled, c.WriteThrough.QueueSize = true, 0 },
		func(c *Config) { c.WriteThrough.Enabled, c.WriteThrough.HashKey = true, "" },
	}
	for i, mutate := range tests {
		c := NewTestConfig()
		mutate(c)
		assert.NotNil(t, c.Validate(), "case %d", i)
	}

	// Disabled write-through is not checked.
	c := NewTestConfig()
	c.WriteThrough.RedisAddr = ""
	assert.Nil(t, c.Validate())
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "tinystm.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
addr = "0.0.0.0:9000"
status-addr = "0.0.0.0:9001"
engine = "btree"
backoff = "25us"
serialize-commits = true
max-qps = 500.5

[alloc]
end = 2000

[write-through]
enabled = true
hash-key = "vm"
timeout = "2s"
`)
	c := NewDefaultConfig()
	require.Nil(t, c.LoadFile(path))
	assert.Equal(t, "0.0.0.0:9000", c.Addr)
	assert.Equal(t, "0.0.0.0:9001", c.StatusAddr)
	assert.Equal(t, "btree", c.Engine)
	assert.Equal(t, 25*time.Microsecond, c.Backoff.Duration)
	assert.True(t, c.SerializeCommits)
	assert.Equal(t, 500.5, c.MaxQPS)
	assert.Equal(t, uint32(2000), c.Alloc.End)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1024, c.Alloc.Concurrency)
	assert.Equal(t, "127.0.0.1:6379", c.WriteThrough.RedisAddr)
	assert.Equal(t, "vm", c.WriteThrough.HashKey)
	assert.Equal(t, 2*time.Second, c.WriteThrough.Timeout.Duration)
	assert.Nil(t, c.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	c := NewDefaultConfig()
	assert.NotNil(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
	assert.NotNil(t, c.LoadFile(writeConfig(t, `backoff = "soon"`)))

	err := c.LoadFile(writeConfig(t, "raft = true\n"))
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "raft")
}

func TestDurationText(t *testing.T) {
	d := NewDuration(1500 * time.Millisecond)
	text, err := d.MarshalText()
	require.Nil(t, err)
	assert.Equal(t, "1.5s", string(text))

	var parsed Duration
	require.Nil(t, parsed.UnmarshalText(text))
	assert.Equal(t, d, parsed)
}
