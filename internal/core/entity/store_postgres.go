package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/inkwell/internal/core/content"
	dbschema "github.com/taibuivan/inkwell/internal/platform/database/schema"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
	"github.com/taibuivan/inkwell/pkg/fulltext"
)

// querier is the pgx surface shared by *pgxpool.Pool and pgx.Tx, so the same
// store methods run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the [Store] interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewPostgresStore constructs a PostgreSQL backed entity store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

var _ Store = (*PostgresStore)(nil)

// WithTransaction runs fn against a transactional store. Nested calls reuse
// the enclosing transaction.
func (store *PostgresStore) WithTransaction(context context.Context, fn func(tx Store) error) error {
	if _, nested := store.db.(pgx.Tx); nested {
		return fn(store)
	}

	tx, err := store.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "begin_entity_tx")
	}
	defer tx.Rollback(context)

	if err := fn(&PostgresStore{pool: store.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(context); err != nil {
		return dberr.Wrap(err, "commit_entity_tx")
	}
	return nil
}

// # Entity rows

func entityColumns(alias string) string {
	e := dbschema.ContentEntity
	columns := e.Columns()
	qualified := make([]string, len(columns))
	for i, column := range columns {
		qualified[i] = alias + "." + column
	}
	return strings.Join(qualified, ", ")
}

func scanRecord(row pgx.Row) (*Record, error) {
	record := &Record{}
	err := row.Scan(
		&record.ID, &record.Info.Type, &record.Info.Name, &record.Info.AuthKey,
		&record.Info.Version, &record.Info.PublishedVersion, &record.Info.Status,
		&record.Info.Valid, &record.Info.ValidPublished,
		&record.Info.CreatedAt, &record.Info.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (store *PostgresStore) InsertEntity(context context.Context, record *Record, encoded []byte) error {
	e := dbschema.ContentEntity
	// ON CONFLICT DO NOTHING keeps the enclosing transaction usable when the
	// id or name is taken, so the caller can retry with a different name.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		e.Table,
		e.ID, e.Type, e.Name, e.AuthKey, e.LatestVersion,
		e.Status, e.Valid, e.CreatedAt, e.UpdatedAt,
	)
	tag, err := store.db.Exec(context, query,
		record.ID, record.Info.Type, record.Info.Name, record.Info.AuthKey,
		record.Info.Version, record.Info.Status, record.Info.Valid,
		record.Info.CreatedAt, record.Info.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "insert_entity")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrConflict
	}

	return store.InsertVersion(context, record.ID, record.Info.Version, encoded)
}

func (store *PostgresStore) GetRecord(context context.Context, id string, forUpdate bool) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s e WHERE e.%s = $1`,
		entityColumns("e"), dbschema.ContentEntity.Table, dbschema.ContentEntity.ID)
	if forUpdate {
		query += " FOR UPDATE"
	}

	record, err := scanRecord(store.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "get_entity")
	}
	return record, nil
}

func (store *PostgresStore) GetVersionData(context context.Context, id string, version int) ([]byte, error) {
	v := dbschema.ContentEntityVersion
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		v.Data, v.Table, v.EntityID, v.Version)

	var data []byte
	if err := store.db.QueryRow(context, query, id, version).Scan(&data); err != nil {
		return nil, dberr.Wrap(err, "get_entity_version")
	}
	return data, nil
}

func (store *PostgresStore) InsertVersion(context context.Context, id string, version int, encoded []byte) error {
	v := dbschema.ContentEntityVersion
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, now())`,
		v.Table, v.EntityID, v.Version, v.Data, v.CreatedAt)

	if _, err := store.db.Exec(context, query, id, version, encoded); err != nil {
		return dberr.Wrap(err, "insert_entity_version")
	}
	return nil
}

func (store *PostgresStore) UpdateLatest(context context.Context, id, name string, version int, status Status, valid bool) error {
	e := dbschema.ContentEntity
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5, %s = now()
		WHERE %s = $1`,
		e.Table, e.Name, e.LatestVersion, e.Status, e.Valid, e.UpdatedAt, e.ID)

	tag, err := store.db.Exec(context, query, id, name, version, status, valid)
	if err != nil {
		return dberr.Wrap(err, "update_entity_latest")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (store *PostgresStore) SetPublished(context context.Context, id string, publishedVersion *int, status Status, validPublished *bool) error {
	e := dbschema.ContentEntity
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = now()
		WHERE %s = $1`,
		e.Table, e.PublishedVersion, e.Status, e.ValidPublished, e.UpdatedAt, e.ID)

	tag, err := store.db.Exec(context, query, id, publishedVersion, status, validPublished)
	if err != nil {
		return dberr.Wrap(err, "set_entity_published")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (store *PostgresStore) SetStatus(context context.Context, id string, status Status) error {
	e := dbschema.ContentEntity
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		e.Table, e.Status, e.UpdatedAt, e.ID)

	tag, err := store.db.Exec(context, query, id, status)
	if err != nil {
		return dberr.Wrap(err, "set_entity_status")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// # Derived indexes

func (store *PostgresStore) ReplaceIndexes(context context.Context, id string, scope IndexScope, data *IndexData) error {
	fts := dbschema.ContentEntityFTS
	location := dbschema.ContentEntityLocation
	componentType := dbschema.ContentEntityComponentType
	reference := dbschema.ContentEntityReference

	// 1. Clear the scope
	clears := []struct{ table, entityID, scopeCol string }{
		{fts.Table, fts.EntityID, fts.Scope},
		{location.Table, location.EntityID, location.Scope},
		{componentType.Table, componentType.EntityID, componentType.Scope},
		{reference.Table, reference.FromID, reference.Scope},
	}
	for _, clear := range clears {
		query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
			clear.table, clear.entityID, clear.scopeCol)
		if _, err := store.db.Exec(context, query, id, scope); err != nil {
			return dberr.Wrap(err, "clear_entity_indexes")
		}
	}
	if data == nil {
		return nil
	}

	// 2. Rebuild from the collected data
	if len(data.FullTextTokens) > 0 {
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
			fts.Table, fts.EntityID, fts.Scope, fts.Tokens)
		if _, err := store.db.Exec(context, query, id, scope, data.FullTextTokens); err != nil {
			return dberr.Wrap(err, "insert_entity_fts")
		}
	}

	for _, coords := range data.Locations {
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)`,
			location.Table, location.EntityID, location.Scope, location.Lat, location.Lng)
		if _, err := store.db.Exec(context, query, id, scope, coords.Lat, coords.Lng); err != nil {
			return dberr.Wrap(err, "insert_entity_location")
		}
	}

	for _, typeName := range data.ComponentTypes {
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
			componentType.Table, componentType.EntityID, componentType.Scope, componentType.ComponentType)
		if _, err := store.db.Exec(context, query, id, scope, typeName); err != nil {
			return dberr.Wrap(err, "insert_entity_componenttype")
		}
	}

	for _, toID := range data.ReferenceIDs {
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
			reference.Table, reference.FromID, reference.Scope, reference.ToID)
		if _, err := store.db.Exec(context, query, id, scope, toID); err != nil {
			return dberr.Wrap(err, "insert_entity_reference")
		}
	}

	return nil
}

// # Unique index values

func scopeColumn(scope IndexScope) string {
	if scope == ScopePublished {
		return dbschema.ContentUniqueIndexValue.Published
	}
	return dbschema.ContentUniqueIndexValue.Latest
}

/*
ClaimUniqueValues makes values the entity's complete claim set for one scope.

The flow releases the entity's current claims, re-acquires row by row (an
(indexname, value) pair held by another entity aborts with
[*UniqueConflictError]), then removes rows no scope claims anymore. Callers
run this inside WithTransaction; the entity row lock taken by GetRecord
serializes competing claims for the same entity, and the unique primary key
on (indexname, value) arbitrates races between entities.
*/
func (store *PostgresStore) ClaimUniqueValues(context context.Context, id string, scope IndexScope, values []content.UniqueIndexValue) error {
	u := dbschema.ContentUniqueIndexValue
	flag := scopeColumn(scope)

	release := fmt.Sprintf(`UPDATE %s SET %s = false WHERE %s = $1 AND %s = true`,
		u.Table, flag, u.EntityID, flag)
	if _, err := store.db.Exec(context, release, id); err != nil {
		return dberr.Wrap(err, "release_unique_values")
	}

	claim := fmt.Sprintf(`
		INSERT INTO %s AS u (%s, %s, %s, %s) VALUES ($1, $2, $3, true)
		ON CONFLICT (%s, %s) DO UPDATE SET %s = true
		WHERE u.%s = $3`,
		u.Table, u.IndexName, u.Value, u.EntityID, flag,
		u.IndexName, u.Value, flag,
		u.EntityID)
	owner := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		u.EntityID, u.Table, u.IndexName, u.Value)

	for _, value := range values {
		tag, err := store.db.Exec(context, claim, value.Index, value.Value, id)
		if err != nil {
			return dberr.Wrap(err, "claim_unique_value")
		}
		if tag.RowsAffected() > 0 {
			continue
		}

		// The pair exists and belongs to someone else.
		var ownerID string
		if err := store.db.QueryRow(context, owner, value.Index, value.Value).Scan(&ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return dberr.ErrConflict
			}
			return dberr.Wrap(err, "get_unique_value_owner")
		}
		return &UniqueConflictError{Index: value.Index, Value: value.Value, OwnerID: ownerID}
	}

	sweep := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = false AND %s = false`,
		u.Table, u.EntityID, u.Latest, u.Published)
	if _, err := store.db.Exec(context, sweep, id); err != nil {
		return dberr.Wrap(err, "sweep_unique_values")
	}

	return nil
}

// # Search

/*
List returns a filtered, paginated slice of entity records plus the total
count via a COUNT(*) OVER() window, avoiding a second query. Full-text
matching uses array containment over the normalized token index; reference
matching uses an EXISTS probe on the reference index.
*/
func (store *PostgresStore) List(context context.Context, filter Filter, limit, offset int) ([]*Record, int, error) {
	e := dbschema.ContentEntity
	fts := dbschema.ContentEntityFTS
	reference := dbschema.ContentEntityReference

	var queryBuilder strings.Builder
	var args []any
	argID := 1

	queryBuilder.WriteString(fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM %s e
		WHERE true
	`, entityColumns("e"), e.Table))

	if len(filter.Types) > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" AND e.%s = ANY($%d)", e.Type, argID))
		args = append(args, filter.Types)
		argID++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		queryBuilder.WriteString(fmt.Sprintf(" AND e.%s = ANY($%d)", e.Status, argID))
		args = append(args, statuses)
		argID++
	}

	if len(filter.AuthKeys) > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" AND e.%s = ANY($%d)", e.AuthKey, argID))
		args = append(args, filter.AuthKeys)
		argID++
	}

	if filter.Text != "" {
		tokens := fulltext.Tokenize(filter.Text)
		if len(tokens) > 0 {
			queryBuilder.WriteString(fmt.Sprintf(` AND EXISTS (
				SELECT 1 FROM %s f
				WHERE f.%s = e.%s AND f.%s = '%s' AND f.%s @> $%d
			)`, fts.Table, fts.EntityID, e.ID, fts.Scope, ScopeLatest, fts.Tokens, argID))
			args = append(args, tokens)
			argID++
		}
	}

	if filter.ReferencesID != "" {
		queryBuilder.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM %s r
			WHERE r.%s = e.%s AND r.%s = '%s' AND r.%s = $%d
		)`, reference.Table, reference.FromID, e.ID, reference.Scope, ScopeLatest, reference.ToID, argID))
		args = append(args, filter.ReferencesID)
		argID++
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY e.%s DESC, e.%s", e.UpdatedAt, e.ID))
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := store.db.Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_entities")
	}
	defer rows.Close()

	records := make([]*Record, 0)
	total := 0
	for rows.Next() {
		record := &Record{}
		err := rows.Scan(
			&record.ID, &record.Info.Type, &record.Info.Name, &record.Info.AuthKey,
			&record.Info.Version, &record.Info.PublishedVersion, &record.Info.Status,
			&record.Info.Valid, &record.Info.ValidPublished,
			&record.Info.CreatedAt, &record.Info.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_entity")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "list_entities")
	}

	return records, total, nil
}

// Sample draws a deterministic pseudo-random ordering by hashing each id
// with the seed, so the same seed pages through the same sequence.
func (store *PostgresStore) Sample(context context.Context, seed string, count int) ([]*Record, error) {
	e := dbschema.ContentEntity
	query := fmt.Sprintf(`
		SELECT %s FROM %s e
		ORDER BY md5(e.%s || $1)
		LIMIT $2`,
		entityColumns("e"), e.Table, e.ID)

	rows, err := store.db.Query(context, query, seed, count)
	if err != nil {
		return nil, dberr.Wrap(err, "sample_entities")
	}
	defer rows.Close()

	records := make([]*Record, 0, count)
	for rows.Next() {
		record := &Record{}
		err := rows.Scan(
			&record.ID, &record.Info.Type, &record.Info.Name, &record.Info.AuthKey,
			&record.Info.Version, &record.Info.PublishedVersion, &record.Info.Status,
			&record.Info.Valid, &record.Info.ValidPublished,
			&record.Info.CreatedAt, &record.Info.UpdatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_entity")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "sample_entities")
	}

	return records, nil
}

// # Event log

func (store *PostgresStore) AppendEvent(context context.Context, event *Event) error {
	ev := dbschema.ContentEvent
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)`,
		ev.Table, ev.ID, ev.Type, ev.Principal, ev.CreatedAt)
	if _, err := store.db.Exec(context, query, event.ID, event.Type, event.Principal, event.CreatedAt); err != nil {
		return dberr.Wrap(err, "insert_event")
	}

	ee := dbschema.ContentEventEntity
	entityQuery := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
		ee.Table, ee.EventID, ee.EntityID, ee.Version)
	for _, entity := range event.Entities {
		if _, err := store.db.Exec(context, entityQuery, event.ID, entity.ID, entity.Version); err != nil {
			return dberr.Wrap(err, "insert_event_entity")
		}
	}

	return nil
}
