package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/dmitrijs2005/gradekeeper/internal/badgerx"
)

const (
	itemPrefix  = "item/"
	indexPrefix = "idx/"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("blobstore: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("blobstore: CBOR decoder initialization failed: " + err.Error())
	}
}

// OverflowTier stores one CBOR record per id under item/<id>, with secondary
// keys idx/<field>/<value>/<id> for timestamp, type, kind, name and tags.
type OverflowTier struct {
	db *badgerx.DB
}

func NewOverflowTier(db *badgerx.DB) *OverflowTier {
	return &OverflowTier{db: db}
}

func (t *OverflowTier) Name() string { return "overflow" }

func itemKey(id string) []byte {
	return []byte(itemPrefix + id)
}

func indexKeys(m Meta) [][]byte {
	keys := [][]byte{
		[]byte(fmt.Sprintf("%sts/%020d/%s", indexPrefix, m.Timestamp, m.ID)),
		[]byte(fmt.Sprintf("%stype/%s/%s", indexPrefix, m.Type, m.ID)),
		[]byte(fmt.Sprintf("%skind/%s/%s", indexPrefix, m.Kind, m.ID)),
	}
	if m.Name != "" {
		keys = append(keys, []byte(fmt.Sprintf("%sname/%s/%s", indexPrefix, m.Name, m.ID)))
	}
	for _, tag := range m.Tags {
		keys = append(keys, []byte(fmt.Sprintf("%stag/%s/%s", indexPrefix, tag, m.ID)))
	}
	return keys
}

func getRecord(txn *badger.Txn, id string) (*Record, error) {
	item, err := txn.Get(itemKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	err = item.Value(func(val []byte) error {
		return decMode.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode overflow record %s: %w", id, err)
	}
	return &rec, nil
}

func deleteRecord(txn *badger.Txn, rec *Record) error {
	for _, k := range indexKeys(rec.Meta) {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return txn.Delete(itemKey(rec.Meta.ID))
}

func (t *OverflowTier) Put(_ context.Context, rec *Record) error {
	b, err := encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode overflow record %s: %w", rec.Meta.ID, err)
	}

	err = t.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, rec.Meta.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			if err := deleteRecord(txn, prev); err != nil {
				return err
			}
		}
		if err := txn.Set(itemKey(rec.Meta.ID), b); err != nil {
			return err
		}
		for _, k := range indexKeys(rec.Meta) {
			if err := txn.Set(k, []byte(rec.Meta.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put overflow record %s: %w", rec.Meta.ID, err)
	}
	return nil
}

func (t *OverflowTier) Get(_ context.Context, id string) (*Record, error) {
	var rec *Record
	err := t.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (t *OverflowTier) Delete(_ context.Context, id string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil || rec == nil {
			return err
		}
		return deleteRecord(txn, rec)
	})
}

// List uses the name or tag index to narrow the scan when the filter names
// one; otherwise it walks every item.
func (t *OverflowTier) List(_ context.Context, f Filter) ([]Meta, error) {
	var out []Meta
	err := t.db.View(func(txn *badger.Txn) error {
		var prefix string
		switch {
		case f.Name != "":
			prefix = fmt.Sprintf("%sname/%s/", indexPrefix, f.Name)
		case f.Tag != "":
			prefix = fmt.Sprintf("%stag/%s/", indexPrefix, f.Tag)
		}
		if prefix != "" {
			ids, err := scanIndex(txn, prefix)
			if err != nil {
				return err
			}
			for _, id := range ids {
				rec, err := getRecord(txn, id)
				if err != nil {
					return err
				}
				if rec != nil && f.Match(rec.Meta) {
					out = append(out, rec.Meta)
				}
			}
			return nil
		}

		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: []byte(itemPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode overflow record %s: %w", it.Item().Key(), err)
			}
			if f.Match(rec.Meta) {
				out = append(out, rec.Meta)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanIndex(txn *badger.Txn, prefix string) ([]string, error) {
	var ids []string
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		ids = append(ids, string(v))
	}
	return ids, nil
}

func (t *OverflowTier) Usage(_ context.Context) (TierUsage, error) {
	n := 0
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(itemPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return TierUsage{}, err
	}
	return TierUsage{Name: t.Name(), Used: t.db.Size(), Items: n}, nil
}
