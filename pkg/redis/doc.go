// Package redis connects to Redis and stores session token pairs in it.
//
// Connect pings the server with retries driven by Config, Healthcheck wraps a
// ping for readiness probes and CredentialStore implements session.Store on
// two keys under Config.KeyPrefix. Config is populated from REDIS_* and
// CREDENTIAL_KEY_PREFIX environment variables via pkg/config.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redis.NewCredentialStore(client, cfg.KeyPrefix)
//	m, err := session.New(session.WithStore(store), session.WithAuthenticator(api))
//
// Connection errors are joined with ErrFailedToParseRedisConnString or
// ErrRedisNotReady; use errors.Is to tell them apart.
package redis
