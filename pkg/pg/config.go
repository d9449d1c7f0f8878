package pg

import "time"

type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"4"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"1"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`

	// MigrationsTable is where goose records applied versions.
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"authkit_schema_migrations"`

	// KeyPrefix namespaces credential rows so several clients can share a table.
	KeyPrefix string `env:"CREDENTIAL_KEY_PREFIX" envDefault:"authkit:session:"`
}
