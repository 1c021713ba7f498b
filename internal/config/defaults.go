package config

import "time"

const (
	DefaultListen       = "127.0.0.1:3030"
	DefaultAdminAddr    = "127.0.0.1:8081"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 2 * time.Minute
	DefaultBodyLimit    = 1 << 20
)

// DefaultLogDir returns the default access log directory.
func DefaultLogDir() string {
	return "~/.portal/logs"
}
