// Package badgerstore implements chain.Store over github.com/dgraph-io/badger/v4,
// the embedded key-value engine this engine's single-writer process
// model fits naturally: one process, one on-disk database, no network
// round trip between the sync loop and its durable state.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
)

// Store implements chain.Store by keying every document
// "<collection>/<id>" and storing it as JSON, grounded on the same
// prefix-and-iterate shape the pack's own badger-backed key-value store
// uses. It has no secondary indexes: Find scans a collection's prefix
// and filters/sorts in memory. That is the right trade for this engine
// — a single writer touching at most a few thousand documents per
// batch — but it would not scale to a high-throughput multi-tenant
// store; ClickHouse (internal/carver/store/clickhouse) covers that case.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger database rooted at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func docKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

// InsertOne stores doc under collection/id, overwriting any prior value.
func (s *Store) InsertOne(_ context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), data)
	})
}

// InsertMany stores every (id, doc) pair in docs in a single transaction.
func (s *Store) InsertMany(_ context.Context, collection string, docs map[string]any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for id, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
			}
			if err := txn.Set(docKey(collection, id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateByID overwrites collection/id with doc, creating it if absent —
// badger has no distinct update-vs-insert path, so this is InsertOne.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, doc any) error {
	return s.InsertOne(ctx, collection, id, doc)
}

// DeleteMany deletes every document in q.Collection matching q.Filter
// and reports how many were removed.
func (s *Store) DeleteMany(_ context.Context, q chain.Query) (int, error) {
	matches, err := s.scan(q.Collection, q.Filter)
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, m := range matches {
			if err := txn.Delete(docKey(q.Collection, m.id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Find scans q.Collection, applies q.Filter, sorts by q.SortField, and
// decodes up to q.Limit matches into out (a pointer to a slice of the
// caller's document type).
func (s *Store) Find(_ context.Context, q chain.Query, out any) error {
	matches, err := s.scan(q.Collection, q.Filter)
	if err != nil {
		return err
	}
	sortMatches(matches, q.SortField, q.Descending)
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	raw := make([]json.RawMessage, len(matches))
	for i, m := range matches {
		raw[i] = m.raw
	}
	arr, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(arr, out)
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

type docMatch struct {
	id     string
	raw    json.RawMessage
	fields map[string]any
}

func (s *Store) scan(collection string, filter map[string]any) ([]docMatch, error) {
	var matches []docMatch
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := collectionPrefix(collection)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var raw []byte
			if err := item.Value(func(val []byte) error {
				raw = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}

			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err != nil {
				return err
			}
			id := strings.TrimPrefix(string(item.KeyCopy(nil)), string(p))
			// "_id" is always the storage key, regardless of whether the
			// document's own JSON encoding names that field something
			// else (CarverAddress's document id is its Label, encoded
			// under the "label" json tag).
			fields["_id"] = id

			if !matchesFilter(fields, filter) {
				continue
			}
			matches = append(matches, docMatch{id: id, raw: raw, fields: fields})
		}
		return nil
	})
	return matches, err
}

func matchesFilter(fields, filter map[string]any) bool {
	for k, want := range filter {
		if field, ok := strings.CutSuffix(k, "__gte"); ok {
			got, exists := fields[field]
			if !exists || compareNumeric(got, want) < 0 {
				return false
			}
			continue
		}
		got, exists := fields[k]
		if !exists || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func sortMatches(matches []docMatch, field string, descending bool) {
	if field == "" {
		return
	}
	sort.SliceStable(matches, func(i, j int) bool {
		cmp := compareAny(matches[i].fields[field], matches[j].fields[field])
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// compareAny orders two decoded JSON values the way the engine's
// sortable fields actually come in: numbers or strings, never both in
// the same column.
func compareAny(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return strings.Compare(as, bs)
}

func compareNumeric(a, b any) int {
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func equalValue(got, want any) bool {
	if gf, gok := toFloat(got); gok {
		if wf, wok := toFloat(want); wok {
			return gf == wf
		}
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}
