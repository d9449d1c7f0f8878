// Package pg connects to PostgreSQL with pgx and stores session token pairs
// in it.
//
// Connect builds a pgxpool.Pool with retries, Migrate applies the embedded
// goose migrations (one table, session_credentials) and CredentialStore
// implements session.Store on top of it. Config is read from PG_* and
// CREDENTIAL_KEY_PREFIX environment variables.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	store := pg.NewCredentialStore(pool, cfg.KeyPrefix)
package pg
