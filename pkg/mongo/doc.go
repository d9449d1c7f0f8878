// Package mongo connects to MongoDB and stores session token pairs in it.
//
// Connect pings the server with retries driven by Config, Healthcheck wraps a
// ping for readiness probes and CredentialStore implements session.Store on a
// single document whose _id is Config.KeyPrefix. Replacing that document is
// atomic, so readers see either the old pair or the new one.
//
//	client, err := mongo.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	coll := client.Database(cfg.Database).Collection(cfg.Collection)
//	store := mongo.NewCredentialStore(coll, cfg.KeyPrefix)
//
// Connection failures are joined with ErrFailedToConnectToMongo.
package mongo
