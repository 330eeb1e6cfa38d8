// Package config is the ambient configuration layer between a CLI/host
// process and the library-first core: a plain struct, not itself aware
// of flags/env/files, that cmd/indexcore populates from cobra/viper and
// that everything else (storage, kvstore/badgerkv) consumes directly.
package config

import (
	"github.com/rs/zerolog"

	"github.com/strusgo/indexcore/keymap"
	"github.com/strusgo/indexcore/kvstore/badgerkv"
	"github.com/strusgo/indexcore/storage"
)

// Options covers everything needed to open a Storage handle: where the
// KvStore lives, ACL enforcement, the two shared cache sizes, and which
// id allocator strategy the dictionaries use.
type Options struct {
	// Dir is the badger data directory.
	Dir string `mapstructure:"dir"`

	// AclEnabled turns on UserName/AclBlock/UserAclBlock maintenance.
	AclEnabled bool `mapstructure:"acl_enabled"`

	// MetaDataCacheCost and DfCacheCost bound the two shared ristretto
	// caches (storage.Options.MetaDataCacheCost/DfCacheCost).
	MetaDataCacheCost int64 `mapstructure:"metadata_cache_cost"`
	DfCacheCost       int64 `mapstructure:"df_cache_cost"`

	// RangeAllocatorBatchSize selects keymap.RangeAllocator with this
	// batch size instead of the default keymap.CounterAllocator when
	// non-zero — the bulk-load id-allocation opt-in.
	RangeAllocatorBatchSize int `mapstructure:"range_allocator_batch_size"`
}

func (o Options) withDefaults() Options {
	if o.MetaDataCacheCost == 0 {
		o.MetaDataCacheCost = 64 << 20
	}
	if o.DfCacheCost == 0 {
		o.DfCacheCost = 1 << 20
	}
	return o
}

// storageOptions translates Options into the storage package's own
// Options, selecting an Allocator when the caller asked for one.
func (o Options) storageOptions() storage.Options {
	o = o.withDefaults()
	so := storage.Options{
		AclEnabled:        o.AclEnabled,
		MetaDataCacheCost: o.MetaDataCacheCost,
		DfCacheCost:       o.DfCacheCost,
	}
	if o.RangeAllocatorBatchSize > 0 {
		so.Allocator = &keymap.RangeAllocator{BatchSize: o.RangeAllocatorBatchSize}
	}
	return so
}

// Handle pairs a Storage with the badger store backing it, since
// Storage.Close leaves the KvStore open for the caller to manage
// (storage.Storage may be built over any KvStore, not just badger's).
type Handle struct {
	*storage.Storage
	kv *badgerkv.Store
}

// Close releases the Storage's caches and then the underlying badger
// database.
func (h *Handle) Close() error {
	h.Storage.Close()
	return h.kv.Close()
}

// Open opens the badger-backed KvStore at o.Dir and a Storage handle
// over it, the composition cmd/indexcore's `open` command performs.
func Open(o Options, log zerolog.Logger) (*Handle, error) {
	kv, err := badgerkv.Open(o.Dir, log)
	if err != nil {
		return nil, err
	}
	s, err := storage.Open(kv, o.storageOptions())
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return &Handle{Storage: s, kv: kv}, nil
}
