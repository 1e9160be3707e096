package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	dbschema "github.com/taibuivan/inkwell/internal/platform/database/schema"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
)

// PostgresRepository implements [Repository] against the single-row
// content.schemaspec table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed specification store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// specRowID pins the single row holding the current specification.
const specRowID = 1

func (repository *PostgresRepository) GetSpecification(context context.Context) (Spec, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		dbschema.ContentSchemaSpec.Specification,
		dbschema.ContentSchemaSpec.Table,
		dbschema.ContentSchemaSpec.ID)

	var raw []byte
	if err := repository.db.QueryRow(context, query, specRowID).Scan(&raw); err != nil {
		return Spec{}, dberr.Wrap(err, "get_schema_specification")
	}

	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return Spec{}, dberr.Wrap(err, "decode_schema_specification")
	}

	return spec, nil
}

/*
SaveSpecification stores the specification with optimistic concurrency.

The row is upserted: the insert path covers the very first specification
(expectedVersion 0), the update path only fires while the stored version
still equals expectedVersion. Zero affected rows means another writer won
the race, surfaced as dberr.ErrConflict so the service can tell the caller
to re-read and retry.
*/
func (repository *PostgresRepository) SaveSpecification(context context.Context, spec Spec, expectedVersion int) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return dberr.Wrap(err, "encode_schema_specification")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (%s) DO UPDATE
		SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = NOW()
		WHERE %s.%s = $4
	`,
		dbschema.ContentSchemaSpec.Table,
		dbschema.ContentSchemaSpec.ID, dbschema.ContentSchemaSpec.Version,
		dbschema.ContentSchemaSpec.Specification, dbschema.ContentSchemaSpec.UpdatedAt,
		dbschema.ContentSchemaSpec.ID,
		dbschema.ContentSchemaSpec.Version, dbschema.ContentSchemaSpec.Version,
		dbschema.ContentSchemaSpec.Specification, dbschema.ContentSchemaSpec.Specification,
		dbschema.ContentSchemaSpec.UpdatedAt,
		dbschema.ContentSchemaSpec.Table, dbschema.ContentSchemaSpec.Version,
	)

	tag, err := repository.db.Exec(context, query, specRowID, spec.Version, raw, expectedVersion)
	if err != nil {
		return dberr.Wrap(err, "save_schema_specification")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrConflict
	}

	return nil
}

// interface guard
var _ Repository = (*PostgresRepository)(nil)
