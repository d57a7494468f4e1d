package libgru

import (
	"bytes"
	"hash/maphash"

	"github.com/dgraph-io/badger/v3"

	"github.com/Phrogz/indoor-gru-schedule-exhaustive/gru"
)

// PathSet is an insert-if-absent set of canonical path keys, used to drop
// duplicate results across fairness rounds and resumes.
type PathSet interface {
	gru.PathAdder

	// Count returns how many distinct keys have been added.
	Count() int64

	// Close removes all previously added items from this set.
	//
	// If you make subsequent calls to TryAdd(), call Close() when you're done.
	Close()
}

// memSet dedups in memory: a 64-bit hash probed linearly on collision, with
// full keys kept in pooled arenas so equal hashes never alias distinct paths.
// Not safe for concurrent use; the coordinator alone owns it.
type memSet struct {
	hashMap   map[uint64][]byte
	hasher    maphash.Hash
	bufPool   []byte
	bufPoolSz int
	count     int64
}

const memSetPoolSz = 32 * 1024

func NewMemSet() PathSet {
	return &memSet{
		hashMap: make(map[uint64][]byte),
	}
}

func (set *memSet) TryAdd(key []byte) bool {
	set.hasher.Reset()
	set.hasher.Write(key)
	hash := set.hasher.Sum64()

	existing, found := set.hashMap[hash]
	for found {
		if bytes.Equal(existing, key) {
			return false
		}
		hash++
		existing, found = set.hashMap[hash]
	}

	// New entry: back a copy of the key in the current pool, starting a
	// fresh pool when the current one runs out of space.
	pos := set.bufPoolSz
	itemLen := len(key)
	if pos+itemLen > cap(set.bufPool) {
		allocSz := max(memSetPoolSz, itemLen)
		set.bufPool = make([]byte, allocSz)
		set.bufPoolSz = 0
		pos = 0
	}

	set.hashMap[hash] = append(set.bufPool[pos:pos], key...)
	set.bufPoolSz += itemLen
	set.count++
	return true
}

func (set *memSet) Count() int64 {
	return set.count
}

func (set *memSet) Close() {
	set.hashMap = nil
	set.bufPool = nil
	set.bufPoolSz = 0
}

// lsmSet dedups through badger: in memory by default, or on disk for runs
// whose result sets outgrow RAM.
type lsmSet struct {
	db    *badger.DB
	dir   string
	count int64
}

// NewLSMSet returns a badger-backed PathSet. An empty dir keeps the LSM in
// memory; otherwise the set spills under dir as scratch space for one run,
// not as a catalog.
func NewLSMSet(dir string) PathSet {
	return &lsmSet{dir: dir}
}

func (set *lsmSet) autoOpen() {
	if set.db == nil {
		dbOpts := badger.DefaultOptions(set.dir)
		if set.dir == "" {
			dbOpts = dbOpts.WithInMemory(true)
		}
		dbOpts.Logger = nil
		dbOpts.MetricsEnabled = false

		var err error
		set.db, err = badger.Open(dbOpts)
		if err != nil {
			panic(err)
		}
	}
}

func (set *lsmSet) TryAdd(key []byte) bool {
	set.autoOpen()

	txn := set.db.NewTransaction(true)
	defer txn.Commit()

	added := false
	_, err := txn.Get(key)
	if err == nil {
		// no-op since the key is already in the db
	} else if err == badger.ErrKeyNotFound {
		err = txn.Set(key, nil)
		added = true
	}

	if err != nil {
		panic(err)
	}

	if added {
		set.count++
	}
	return added
}

func (set *lsmSet) Count() int64 {
	return set.count
}

func (set *lsmSet) Close() {
	if set.db != nil {
		set.db.Close()
		set.db = nil
	}
}
