/*
Package storage persists session checkpoints in BoltDB.

A checkpoint is a types.SessionRecord serialized as JSON under the session
code in the "sessions" bucket of <dataDir>/felt.db. It holds the session
metadata, the roster including reconnect tokens, the live table and the
starting table, so a restarted server can restore every session with all
participants disconnected and let them resume with their tokens.

Writes happen only from the reconciler's checkpoint pass and from session
retirement; reads happen once at startup. BoltDB's single-writer
transactions are therefore never contended.

	store, err := storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := session.NewRegistry(sessCfg, hub, broker, store)
*/
package storage
