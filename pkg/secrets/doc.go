// Package secrets encrypts stored credentials.
//
// Sealer is AES-256-GCM keyed through HKDF from a 32-byte master key and a
// scope string. Store wraps any session.Store and seals both tokens of the
// pair, so files, Redis keys and database rows never hold them in clear.
//
//	key, err := secrets.ParseKey(os.Getenv("AUTHCTL_STORE_KEY"))
//	if err != nil {
//		return err
//	}
//	sealer, err := secrets.NewSealer(key, "authkit:session")
//	if err != nil {
//		return err
//	}
//	store := secrets.NewStore(session.NewFileStore(path), sealer)
package secrets
