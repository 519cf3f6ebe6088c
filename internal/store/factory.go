package store

import "fmt"

// Options selects and configures a Store backend.
type Options struct {
	Backend       string // "sqlite" | "redis"
	DatabasePath  string
	EncryptionKey []byte
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New constructs the Store backend named by opts.Backend.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case "sqlite":
		return NewSQLiteStore(opts.DatabasePath, opts.EncryptionKey)
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}
