package database

import (
	hivedb "github.com/iotaledger/hive.go/db"
)

// Config describes one database instance on disk.
type Config struct {
	Engine    hivedb.Engine
	Directory string

	Version      byte
	PrefixHealth []byte
}
