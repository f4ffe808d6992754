// Package bboltstorage is an alternative storage plugin backed by
// go.etcd.io/bbolt, demonstrating that the storage phase is driver
// agnostic the same way storage/kv/builder.Drivers in the teacher picks
// among interchangeable KV drivers by name. Grounded almost directly on
// storage/kv/plugins/bbolt/bbolt.go: same Name()/options("path") shape,
// same "open the file, ensure a root bucket exists" sequence.
package bboltstorage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "bbolt"

var rootBucket = []byte("elektra")

// Plugin implements plugin.Plugin's get/set storage phase against a
// bbolt database file named by the parent key's value.
type Plugin struct {
	plugin.Base
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh bbolt storage plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

// Get reads every key/value pair out of the root bucket of the bbolt
// file named by parentKey's value.
func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	path := parentKey.ValueString()

	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "bboltstorage.Get"))
	logger.Debug("start bboltstorage.Get()", zap.String("path", path))

	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		err = fmt.Errorf("bboltstorage: could not open %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(rootBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(name, value []byte) error {
			k, err := key.New(string(name))
			if err != nil {
				return err
			}

			if err := k.SetBinary(append([]byte(nil), value...)); err != nil {
				return err
			}

			ks.Append(k)

			return nil
		})
	})
	if err != nil {
		err = fmt.Errorf("bboltstorage: could not read %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	logger.Debug("return from bboltstorage.Get()", zap.Int("keys", ks.Len()))

	return plugin.Success, nil
}

// Set overwrites the root bucket of the bbolt file named by parentKey's
// value with every key currently in ks.
func (p *Plugin) Set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	path := parentKey.ValueString()

	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "bboltstorage.Set"))
	logger.Debug("start bboltstorage.Set()", zap.String("path", path))

	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		err = fmt.Errorf("bboltstorage: could not open %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(rootBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}

		bucket, err := tx.CreateBucket(rootBucket)
		if err != nil {
			return err
		}

		for _, k := range ks.List() {
			if k.Namespace() == key.Meta {
				continue
			}
			if err := bucket.Put([]byte(k.Name()), k.Value()); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		err = fmt.Errorf("bboltstorage: could not write %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	logger.Debug("return from bboltstorage.Set()")

	return plugin.Success, nil
}
