package operator

import (
	"fmt"
	"sync/atomic"

	"github.com/uptrace/bun"
)

// DataSourceFactory resolves database handles by logical database name.
// Writes always go to the master; reads may be served by a replica.
type DataSourceFactory interface {
	Master(database string) (bun.IDB, error)
	Replica(database string) (bun.IDB, error)
}

// SimpleDataSourceFactory serves every database name from a single handle.
type SimpleDataSourceFactory struct {
	db bun.IDB
}

// NewSimpleDataSourceFactory wraps one database handle.
func NewSimpleDataSourceFactory(db bun.IDB) *SimpleDataSourceFactory {
	return &SimpleDataSourceFactory{db: db}
}

func (f *SimpleDataSourceFactory) Master(string) (bun.IDB, error)  { return f.db, nil }
func (f *SimpleDataSourceFactory) Replica(string) (bun.IDB, error) { return f.db, nil }

// NamedDataSourceFactory routes by database name, with optional read
// replicas per database selected round-robin.
type NamedDataSourceFactory struct {
	masters  map[string]bun.IDB
	replicas map[string][]bun.IDB
	cursor   atomic.Uint64
}

// NewNamedDataSourceFactory creates an empty named factory.
func NewNamedDataSourceFactory() *NamedDataSourceFactory {
	return &NamedDataSourceFactory{
		masters:  make(map[string]bun.IDB),
		replicas: make(map[string][]bun.IDB),
	}
}

// AddMaster registers the master handle for a database name.
func (f *NamedDataSourceFactory) AddMaster(database string, db bun.IDB) *NamedDataSourceFactory {
	f.masters[database] = db
	return f
}

// AddReplica registers a read replica for a database name.
func (f *NamedDataSourceFactory) AddReplica(database string, db bun.IDB) *NamedDataSourceFactory {
	f.replicas[database] = append(f.replicas[database], db)
	return f
}

func (f *NamedDataSourceFactory) Master(database string) (bun.IDB, error) {
	db, ok := f.masters[database]
	if !ok {
		return nil, fmt.Errorf("no master data source registered for database %q", database)
	}
	return db, nil
}

func (f *NamedDataSourceFactory) Replica(database string) (bun.IDB, error) {
	pool := f.replicas[database]
	if len(pool) == 0 {
		return f.Master(database)
	}
	n := f.cursor.Add(1)
	return pool[int(n-1)%len(pool)], nil
}

// dataSourceGenerator resolves the handle for one compiled operator. Writes
// pin the master; queries take whatever the factory serves for reads.
type dataSourceGenerator struct {
	factory  DataSourceFactory
	database string
	write    bool
}

func (g *dataSourceGenerator) resolve() (bun.IDB, error) {
	if g.write {
		return g.factory.Master(g.database)
	}
	return g.factory.Replica(g.database)
}
