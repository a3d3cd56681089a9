// Package database opens the backing KVStore of a node. It selects the
// engine, pins the schema version, and tracks store health so that an unclean
// shutdown is detected on the next start.
package database

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
)

// DBInstance is one open database with its health tracker. The store is
// marked corrupted while open and healthy again on a clean Close.
type DBInstance struct {
	store         kvstore.KVStore
	healthTracker *kvstore.StoreHealthTracker
	dbConfig      Config
}

func NewDBInstance(dbConfig Config) *DBInstance {
	db, err := StoreWithDefaultSettings(dbConfig.Directory, true, dbConfig.Engine)
	if err != nil {
		panic(err)
	}

	storeHealthTracker, err := kvstore.NewStoreHealthTracker(db, dbConfig.PrefixHealth, dbConfig.Version, nil)
	if err != nil {
		panic(ierrors.Wrapf(err, "database in %s is corrupted, delete database and resync node", dbConfig.Directory))
	}
	if err = storeHealthTracker.MarkCorrupted(); err != nil {
		panic(err)
	}

	return &DBInstance{
		store:         db,
		healthTracker: storeHealthTracker,
		dbConfig:      dbConfig,
	}
}

func (d *DBInstance) Close() {
	d.MarkHealthy()

	if err := d.store.Flush(); err != nil {
		panic(err)
	}
	if err := d.store.Close(); err != nil {
		panic(err)
	}
}

func (d *DBInstance) MarkHealthy() {
	if err := d.healthTracker.MarkHealthy(); err != nil {
		panic(err)
	}
}

func (d *DBInstance) MarkCorrupted() {
	if err := d.healthTracker.MarkCorrupted(); err != nil {
		panic(err)
	}
}

func (d *DBInstance) KVStore() kvstore.KVStore {
	return d.store
}
