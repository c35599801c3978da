// Package config loads server settings from AD2WEB_* environment variables,
// optionally layered over a TOML file named by AD2WEB_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DeviceAddr   string        // AD2WEB_DEVICE_ADDR (default "localhost:10000")
	Baudrate     int           // AD2WEB_BAUDRATE (default 115200)
	DialTimeout  time.Duration // AD2WEB_DIAL_TIMEOUT (default 5s)
	WriteTimeout time.Duration // AD2WEB_WRITE_TIMEOUT (default 5s)

	DatabaseURL string // AD2WEB_DATABASE_URL (default "ad2web.db"; postgres:// selects Postgres)
	HTTPAddr    string // AD2WEB_HTTP_ADDR (default ":5000")
	GRPCAddr    string // AD2WEB_GRPC_ADDR (optional, empty = no gRPC health server)
	MountPath   string // AD2WEB_MOUNT_PATH (default "/socket.io")
	AuthToken   string // AD2WEB_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel    string // AD2WEB_LOG_LEVEL (default "info")

	SinkQueueSize   int           // AD2WEB_SINK_QUEUE (default 256)
	SocketQueueSize int           // AD2WEB_SOCKET_QUEUE (default 64)
	StaleAfter      time.Duration // AD2WEB_STALE_AFTER (default 2m; 0 = no watchdog)

	// Archive settings
	ArchiveInterval   time.Duration // AD2WEB_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // AD2WEB_ARCHIVE_S3_BUCKET
	ArchiveS3Endpoint string        // AD2WEB_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // AD2WEB_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // AD2WEB_ARCHIVE_S3_PREFIX (default "ad2web/events/")
}

// Load reads the configuration. Values come from the environment first, then
// from the AD2WEB_CONFIG file, then from built-in defaults.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("AD2WEB_CONFIG"); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	c := &Config{
		DeviceAddr:        src.get("AD2WEB_DEVICE_ADDR", "localhost:10000"),
		DatabaseURL:       src.get("AD2WEB_DATABASE_URL", "ad2web.db"),
		HTTPAddr:          src.get("AD2WEB_HTTP_ADDR", ":5000"),
		GRPCAddr:          src.get("AD2WEB_GRPC_ADDR", ""),
		MountPath:         src.get("AD2WEB_MOUNT_PATH", "/socket.io"),
		AuthToken:         src.get("AD2WEB_AUTH_TOKEN", ""),
		LogLevel:          src.get("AD2WEB_LOG_LEVEL", "info"),
		ArchiveS3Bucket:   src.get("AD2WEB_ARCHIVE_S3_BUCKET", ""),
		ArchiveS3Endpoint: src.get("AD2WEB_ARCHIVE_S3_ENDPOINT", ""),
		ArchiveS3Region:   src.get("AD2WEB_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   src.get("AD2WEB_ARCHIVE_S3_PREFIX", "ad2web/events/"),
	}

	var err error
	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"AD2WEB_BAUDRATE", 115200, &c.Baudrate},
		{"AD2WEB_SINK_QUEUE", 256, &c.SinkQueueSize},
		{"AD2WEB_SOCKET_QUEUE", 64, &c.SocketQueueSize},
	}
	for _, f := range ints {
		if *f.dest, err = src.int(f.key, f.def); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"AD2WEB_DIAL_TIMEOUT", "5s", &c.DialTimeout},
		{"AD2WEB_WRITE_TIMEOUT", "5s", &c.WriteTimeout},
		{"AD2WEB_STALE_AFTER", "2m", &c.StaleAfter},
		{"AD2WEB_ARCHIVE_INTERVAL", "0", &c.ArchiveInterval},
	}
	for _, f := range durations {
		if *f.dest, err = src.duration(f.key, f.def); err != nil {
			return nil, err
		}
	}

	if !strings.HasPrefix(c.MountPath, "/") {
		return nil, fmt.Errorf("AD2WEB_MOUNT_PATH must start with '/': %q", c.MountPath)
	}
	if len(c.MountPath) > 1 {
		c.MountPath = strings.TrimSuffix(c.MountPath, "/")
	}

	return c, nil
}

// ArchiveEnabled reports whether the S3 archive should run.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveInterval > 0 && c.ArchiveS3Bucket != ""
}

// loadFile reads a flat TOML file whose keys are the lower-case env names
// without the AD2WEB_ prefix, e.g. device_addr = "10.0.0.5:10000".
func loadFile(path string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("AD2WEB_CONFIG %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []map[string]any, []any:
			return nil, fmt.Errorf("AD2WEB_CONFIG %s: key %q must be a scalar", path, k)
		}
		out["AD2WEB_"+strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (s source) int(key string, fallback int) (int, error) {
	v := s.get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (s source) duration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(s.get(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
