package database

import (
	"runtime"

	hivedb "github.com/iotaledger/hive.go/db"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/kvstore/rocksdb"
)

var (
	// AllowedEnginesDefault is the list of engines a fresh directory may be
	// opened with.
	AllowedEnginesDefault = []hivedb.Engine{hivedb.EngineAuto, hivedb.EngineMapDB, hivedb.EngineRocksDB}

	// AllowedEnginesStorage is the list of engines a previously initialized
	// directory may report.
	AllowedEnginesStorage = []hivedb.Engine{hivedb.EngineMapDB, hivedb.EngineRocksDB}
)

// StoreWithDefaultSettings returns a KVStore with engine-specific default
// settings, checking the directory's recorded engine against the requested
// one.
func StoreWithDefaultSettings(path string, createDatabaseIfNotExists bool, dbEngine hivedb.Engine, allowedEngines ...hivedb.Engine) (kvstore.KVStore, error) {
	tmpAllowedEngines := AllowedEnginesDefault
	if len(allowedEngines) > 0 {
		tmpAllowedEngines = allowedEngines
	}

	targetEngine, err := hivedb.CheckEngine(path, createDatabaseIfNotExists, dbEngine, tmpAllowedEngines)
	if err != nil {
		return nil, err
	}

	switch targetEngine {
	case hivedb.EngineRocksDB:
		db, err := newRocksDB(path)
		if err != nil {
			return nil, err
		}

		return rocksdb.New(db), nil

	case hivedb.EngineMapDB:
		return mapdb.NewMapDB(), nil

	default:
		return nil, ierrors.Errorf("unknown database engine: %s, supported engines: mapdb/rocksdb", dbEngine)
	}
}

func newRocksDB(path string) (*rocksdb.RocksDB, error) {
	opts := []rocksdb.Option{
		rocksdb.IncreaseParallelism(runtime.NumCPU() - 1),
		rocksdb.Custom([]string{
			"periodic_compaction_seconds=43200",
			"level_compaction_dynamic_level_bytes=true",
			"keep_log_file_num=2",
			"max_log_file_size=50000000",
		}),
	}

	return rocksdb.CreateDB(path, opts...)
}
