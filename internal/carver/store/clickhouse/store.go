// Package clickhouse implements chain.Store over ClickHouse, adapted
// from the teacher's own utxo repository package: the same
// clickhouse-go/v2 connection, PrepareBatch-for-writes,
// conn.Query/rows.Scan-for-reads shape, generalized from per-table
// methods into the generic document interface the carver engine needs.
//
// Every collection (blocks, movements, addresses) lands in one
// ReplacingMergeTree table keyed by (collection, id): writes always
// insert a new row with a fresh version, and reads query with FINAL so
// only the newest version of each id is visible. This is the standard
// ClickHouse upsert idiom, since the engine has no native UPDATE.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
)

// Metrics records per-operation outcome and latency, mirroring the
// teacher's own repository Metrics contract.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
}

// Store implements chain.Store over a single ClickHouse table shared
// by every collection. It is intended as the analytics-facing secondary
// store — see internal/carver/store/badger for the primary, low-latency
// store the sync loop itself should run against; ClickHouse's
// ALTER-TABLE-based deletes are asynchronous mutations, which makes it
// a poor fit for the Unwinder's crash-restart-safety requirement of an
// immediately-visible delete.
type Store struct {
	conn    clickhouse.Conn
	metrics Metrics
}

// New opens a ClickHouse connection from dsn. The carver_documents table
// itself is not created here — run cmd/migrations/clickhouse against
// migrations/clickhouse first, the same way the rest of this engine's
// schema is provisioned.
func New(dsn string, metrics Metrics) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("clickhouse dsn is required")
	}
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Store{conn: conn, metrics: metrics}, nil
}

// documentRow is the generic shape every collection's rows project
// into, independent of the document's own Go type. height, sequence,
// block_height, and is_confirmed are the only fields any carver
// component ever filters or sorts on, so those are the only ones
// promoted to real columns; everything else is recovered from payload.
type documentRow struct {
	Height      int64
	Sequence    int64
	BlockHeight int64
	IsConfirmed uint8
}

func extractRow(doc any) (documentRow, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return documentRow{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return documentRow{}, err
	}
	return documentRow{
		Height:      intField(fields, "height"),
		Sequence:    intField(fields, "sequence"),
		BlockHeight: intField(fields, "block_height"),
		IsConfirmed: boolField(fields, "is_confirmed"),
	}, nil
}

func intField(fields map[string]any, name string) int64 {
	if v, ok := fields[name].(float64); ok {
		return int64(v)
	}
	return 0
}

func boolField(fields map[string]any, name string) uint8 {
	if v, ok := fields[name].(bool); ok && v {
		return 1
	}
	return 0
}

// InsertOne stores doc as the newest version of collection/id.
func (s *Store) InsertOne(ctx context.Context, collection, id string, doc any) (err error) {
	started := time.Now()
	defer func() { s.observe("insert_one", started, err) }()

	return s.insertRows(ctx, collection, map[string]any{id: doc})
}

// InsertMany stores every (id, doc) pair as the newest version of its row.
func (s *Store) InsertMany(ctx context.Context, collection string, docs map[string]any) (err error) {
	started := time.Now()
	defer func() { s.observe("insert_many", started, err) }()

	return s.insertRows(ctx, collection, docs)
}

func (s *Store) insertRows(ctx context.Context, collection string, docs map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO carver_documents (
		collection, id, height, sequence, block_height, is_confirmed, payload, version
	) VALUES`)
	if err != nil {
		return fmt.Errorf("prepare documents batch: %w", err)
	}

	for id, doc := range docs {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
		}
		row, err := extractRow(doc)
		if err != nil {
			return fmt.Errorf("extract row %s/%s: %w", collection, id, err)
		}
		if err := batch.Append(
			collection, id, row.Height, row.Sequence, row.BlockHeight, row.IsConfirmed,
			string(payload), uint64(time.Now().UnixNano()),
		); err != nil {
			return fmt.Errorf("append %s/%s: %w", collection, id, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

// UpdateByID overwrites collection/id with a newer version of doc.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, doc any) (err error) {
	started := time.Now()
	defer func() { s.observe("update_by_id", started, err) }()

	return s.insertRows(ctx, collection, map[string]any{id: doc})
}

// Find runs q against the shared table, FINAL-qualified so only each
// row's newest version is visible, and decodes matching payloads into out.
func (s *Store) Find(ctx context.Context, q chain.Query, out any) (err error) {
	started := time.Now()
	defer func() { s.observe("find", started, err) }()

	where, args := buildWhere(q.Collection, q.Filter)
	query := "SELECT payload FROM carver_documents FINAL WHERE " + where

	if q.SortField != "" {
		query += " ORDER BY " + sortColumn(q.SortField)
		if q.Descending {
			query += " DESC"
		}
	}
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var payloads []json.RawMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		payloads = append(payloads, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}

	arr, err := json.Marshal(payloads)
	if err != nil {
		return err
	}
	return json.Unmarshal(arr, out)
}

// DeleteMany issues a lightweight ALTER TABLE ... DELETE mutation for
// every row in q.Collection matching q.Filter. ClickHouse applies
// mutations asynchronously, so a caller that needs the delete visible
// before its next read (the Unwinder does) should not run against this
// store — see the package doc comment.
func (s *Store) DeleteMany(ctx context.Context, q chain.Query) (n int, err error) {
	started := time.Now()
	defer func() { s.observe("delete_many", started, err) }()

	where, args := buildWhere(q.Collection, q.Filter)

	count, err := s.countMatching(ctx, where, args)
	if err != nil {
		return 0, err
	}

	query := "ALTER TABLE carver_documents DELETE WHERE " + where
	if err := s.conn.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return count, nil
}

func (s *Store) countMatching(ctx context.Context, where string, args []any) (int, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, "SELECT count() FROM carver_documents FINAL WHERE "+where, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return int(count), nil
}

// Close releases the underlying ClickHouse connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) observe(operation string, started time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(operation, err, started)
	}
}

func sortColumn(field string) string {
	switch field {
	case "height", "sequence", "block_height", "is_confirmed":
		return field
	default:
		return "sequence"
	}
}

func buildWhere(collection string, filter map[string]any) (string, []any) {
	clauses := []string{"collection = ?"}
	args := []any{collection}

	for k, want := range filter {
		if field, ok := strings.CutSuffix(k, "__gte"); ok {
			clauses = append(clauses, sortColumn(field)+" >= ?")
			args = append(args, want)
			continue
		}
		if k == "_id" {
			clauses = append(clauses, "id = ?")
			args = append(args, want)
			continue
		}
		clauses = append(clauses, sortColumn(k)+" = ?")
		args = append(args, want)
	}
	return strings.Join(clauses, " AND "), args
}
