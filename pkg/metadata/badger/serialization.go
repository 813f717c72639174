package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Records are stored as JSON. The metadata types already carry json tags
// for the HTTP API, and JSON keeps the database inspectable with badger's
// own tooling.

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return &v, nil
}

// put encodes v and stores it under key.
func put(txn *badger.Txn, key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// load decodes the record under key. A missing key becomes a NotFound
// error for entity/id.
func load[T any](txn *badger.Txn, key []byte, entity, id string) (*T, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", entity, id, err)
	}

	var out *T
	err = item.Value(func(val []byte) error {
		out, err = decode[T](val)
		return err
	})
	return out, err
}

// loadString reads a raw string value. ok is false when the key is absent.
func loadString(txn *badger.Txn, key []byte) (value string, ok bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scan decodes every record under prefix, keeping those for which keep
// returns true (all of them when keep is nil).
func scan[T any](txn *badger.Txn, prefix []byte, keep func(*T) bool) ([]*T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*T
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		var v *T
		err := it.Item().Value(func(val []byte) error {
			var err error
			v, err = decode[T](val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// scanKeys returns copies of the keys under prefix accepted by keep. Values
// are not fetched.
func scanKeys(txn *badger.Txn, prefix []byte, keep func(key []byte) bool) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		if keep == nil || keep(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// deleteKeys deletes every key. Keys are collected before deleting so that
// no iterator is open while the transaction mutates.
func deleteKeys(txn *badger.Txn, keys [][]byte) error {
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
