package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/pingcap/errors"
)

type Config struct {
	Addr string `toml:"addr"`
	// Address of the status server serving /status and /debug/pprof, empty disables it.
	StatusAddr string `toml:"status-addr"`
	LogLevel   string `toml:"log-level"`
	// Empty logs to stderr.
	LogFile string `toml:"log-file"`

	// Storage engine of the memory, "sharded" or "btree".
	Engine     string `toml:"engine"`
	ShardCount int    `toml:"shard-count"`

	// Delay between a conflicting commit and the next attempt.
	Backoff Duration `toml:"backoff"`
	// Latch the keys of each commit so overlapping commits validate and apply one at a time.
	SerializeCommits bool `toml:"serialize-commits"`

	// Requests per second accepted by the HTTP server, 0 for no limit.
	MaxQPS float64 `toml:"max-qps"`

	Alloc        AllocConfig        `toml:"alloc"`
	WriteThrough WriteThroughConfig `toml:"write-through"`
}

// AllocConfig is the address range written at startup and on reallocation.
type AllocConfig struct {
	Start       uint32 `toml:"start"`
	End         uint32 `toml:"end"`
	Concurrency int    `toml:"concurrency"`
}

// WriteThroughConfig configures mirroring committed values into a Redis hash.
type WriteThroughConfig struct {
	Enabled       bool     `toml:"enabled"`
	RedisAddr     string   `toml:"redis-addr"`
	RedisPassword string   `toml:"redis-password"`
	RedisDB       int      `toml:"redis-db"`
	HashKey       string   `toml:"hash-key"`
	QueueSize     int      `toml:"queue-size"`
	Timeout       Duration `toml:"timeout"`
}

// Duration is a time.Duration which reads and writes as a string such as "10us" in TOML.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Trace(err)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (c *Config) Validate() error {
	if len(c.Addr) == 0 {
		return errors.New("addr must not be empty")
	}
	if len(c.StatusAddr) != 0 && c.StatusAddr == c.Addr {
		return errors.Errorf("status-addr and addr are both %s", c.Addr)
	}
	switch c.Engine {
	case stm.EngineSharded, stm.EngineBTree:
	default:
		return errors.Errorf("unknown engine %q, expect %q or %q", c.Engine, stm.EngineSharded, stm.EngineBTree)
	}
	if c.ShardCount < 0 {
		return errors.Errorf("shard-count must not be negative, got %d", c.ShardCount)
	}
	if c.Backoff.Duration <= 0 {
		return errors.New("backoff must be greater than 0")
	}
	if c.MaxQPS < 0 {
		return errors.New("max-qps must not be negative")
	}
	if c.Alloc.Start > c.Alloc.End {
		return errors.Errorf("alloc start %d is greater than end %d", c.Alloc.Start, c.Alloc.End)
	}
	if c.Alloc.End > primitive.MaxScalar {
		return errors.Errorf("alloc end %d does not fit in a scalar", c.Alloc.End)
	}
	if c.Alloc.Concurrency <= 0 {
		return errors.New("alloc concurrency must be greater than 0")
	}

	if c.WriteThrough.Enabled {
		if len(c.WriteThrough.RedisAddr) == 0 {
			return errors.New("write-through is enabled but redis-addr is empty")
		}
		if len(c.WriteThrough.HashKey) == 0 {
			return errors.New("write-through hash-key must not be empty")
		}
		if c.WriteThrough.QueueSize <= 0 {
			return errors.New("write-through queue-size must be greater than 0")
		}
		if c.WriteThrough.Timeout.Duration <= 0 {
			return errors.New("write-through timeout must be greater than 0")
		}
	}
	if !c.SerializeCommits {
		log.Debugf("commits are not serialized, overlapping write sets may interleave")
	}
	return nil
}

// LoadFile overrides c with the settings found in the TOML file at path. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Annotatef(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return errors.Errorf("config %s contains undefined item: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		Addr:       "127.0.0.1:8080",
		StatusAddr: "127.0.0.1:8081",
		LogLevel:   getLogLevel(),
		Engine:     stm.EngineSharded,
		ShardCount: stm.DefaultShardCount,
		Backoff:    NewDuration(stm.DefaultBackoff),
		Alloc: AllocConfig{
			Start:       0,
			End:         1000000,
			Concurrency: 1024,
		},
		WriteThrough: WriteThroughConfig{
			RedisAddr: "127.0.0.1:6379",
			HashKey:   "svm_memory",
			QueueSize: 4096,
			Timeout:   NewDuration(time.Second),
		},
	}
}

func NewTestConfig() *Config {
	return &Config{
		Addr:       "127.0.0.1:0",
		LogLevel:   getLogLevel(),
		Engine:     stm.EngineSharded,
		ShardCount: 16,
		Backoff:    NewDuration(time.Microsecond),
		Alloc: AllocConfig{
			Start:       0,
			End:         100,
			Concurrency: 8,
		},
		WriteThrough: WriteThroughConfig{
			RedisAddr: "127.0.0.1:6379",
			HashKey:   "svm_memory_test",
			QueueSize: 16,
			Timeout:   NewDuration(100 * time.Millisecond),
		},
	}
}
