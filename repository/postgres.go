package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// postgresMigrations are applied in order every time the repository connects.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		guid        TEXT PRIMARY KEY,
		type_name   TEXT NOT NULL,
		unique_key  TEXT UNIQUE,
		version     BIGINT NOT NULL,
		create_time TIMESTAMPTZ NOT NULL,
		data        BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS entities_type_name_idx ON entities (type_name)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		guid        TEXT PRIMARY KEY,
		type_name   TEXT NOT NULL,
		end1_guid   TEXT NOT NULL REFERENCES entities (guid) ON DELETE CASCADE,
		end2_guid   TEXT NOT NULL REFERENCES entities (guid) ON DELETE CASCADE,
		version     BIGINT NOT NULL,
		create_time TIMESTAMPTZ NOT NULL,
		data        BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS relationships_end1_idx ON relationships (end1_guid)`,
	`CREATE INDEX IF NOT EXISTS relationships_end2_idx ON relationships (end2_guid)`,
	`ALTER TABLE relationships ADD COLUMN IF NOT EXISTS unique_key TEXT UNIQUE`,
}

// pqForeignKeyViolation is the SQLSTATE reported when a relationship end
// does not exist.
const pqForeignKeyViolation = "23503"

// PostgresRepository stores the metadata repository in PostgreSQL.
type PostgresRepository struct {
	db          *sqlx.DB
	log         *slog.Logger
	locationURI string
}

// NewPostgresRepository connects to dsn and applies the schema migrations.
func NewPostgresRepository(ctx context.Context, dsn string, log *slog.Logger) (*PostgresRepository, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	for _, migration := range postgresMigrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}

	return &PostgresRepository{
		db:          db,
		log:         log,
		locationURI: redactDSN(dsn),
	}, nil
}

// CreateEntity stores a new entity.
func (p *PostgresRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := newEntity(entity)
	if err != nil {
		return nil, err
	}
	row, err := toEntityRow(stored, "")
	if err != nil {
		return nil, err
	}
	_, err = p.db.NamedExecContext(ctx,
		`INSERT INTO entities (guid, type_name, unique_key, version, create_time, data)
		 VALUES (:guid, :type_name, :unique_key, :version, :create_time, :data)`, row)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	return stored, nil
}

// FindOrCreateEntity returns the entity registered under uniqueKey or creates it.
func (p *PostgresRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newEntity(entity)
	if err != nil {
		return nil, false, err
	}
	row, err := toEntityRow(stored, uniqueKey)
	if err != nil {
		return nil, false, err
	}

	res, err := p.db.NamedExecContext(ctx,
		`INSERT INTO entities (guid, type_name, unique_key, version, create_time, data)
		 VALUES (:guid, :type_name, :unique_key, :version, :create_time, :data)
		 ON CONFLICT (unique_key) DO NOTHING`, row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create entity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return stored, true, nil
	}

	var existing entityRow
	if err := p.db.GetContext(ctx, &existing, `SELECT * FROM entities WHERE unique_key = $1`, uniqueKey); err != nil {
		return nil, false, fmt.Errorf("failed to load entity for key %s: %w", uniqueKey, err)
	}
	found, err := decodeEntity(existing.Data)
	return found, false, err
}

// GetEntity returns the entity with the given GUID.
func (p *PostgresRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	return p.getEntity(ctx, p.db, guid)
}

// UpdateEntity replaces the stored entity when the versions match.
func (p *PostgresRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := p.getEntity(ctx, p.db, entity.GUID)
	if err != nil {
		return nil, err
	}
	next, err := nextEntity(stored, entity)
	if err != nil {
		return nil, err
	}
	data, err := encodeEntity(next)
	if err != nil {
		return nil, err
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE entities SET type_name = $1, version = $2, data = $3 WHERE guid = $4 AND version = $5`,
		next.TypeName, next.Version, data, stored.GUID, stored.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, fmt.Errorf("%w: entity %s changed concurrently", interfaces.ErrVersionConflict, stored.GUID)
	}
	return next, nil
}

// DeleteEntity removes the entity. Attached relationships cascade.
func (p *PostgresRepository) DeleteEntity(ctx context.Context, guid string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM entities WHERE guid = $1`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
	}
	return nil
}

// FindEntities returns the entities matching search, oldest first.
func (p *PostgresRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	var rows []entityRow
	var err error
	if len(search.TypeNames) > 0 {
		err = p.db.SelectContext(ctx, &rows,
			`SELECT * FROM entities WHERE type_name = ANY($1) ORDER BY create_time, guid`,
			pq.Array(search.TypeNames))
	} else {
		err = p.db.SelectContext(ctx, &rows, `SELECT * FROM entities ORDER BY create_time, guid`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entities: %w", err)
	}

	out := make([]*interfaces.EntityDetail, 0, len(rows))
	for _, row := range rows {
		entity, err := decodeEntity(row.Data)
		if err != nil {
			return nil, err
		}
		if search.Matches(entity) {
			out = append(out, entity)
		}
	}
	sortEntities(out)
	return out, nil
}

// CreateRelationship stores a new relationship between two stored entities.
func (p *PostgresRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, err
	}
	if _, err := p.insertRelationship(ctx, stored, "", ""); err != nil {
		return nil, err
	}
	return stored, nil
}

// FindOrCreateRelationship returns the relationship registered under
// uniqueKey or creates it.
func (p *PostgresRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, false, err
	}

	inserted, err := p.insertRelationship(ctx, stored, uniqueKey, "ON CONFLICT (unique_key) DO NOTHING")
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return stored, true, nil
	}

	var existing relationshipRow
	if err := p.db.GetContext(ctx, &existing, `SELECT * FROM relationships WHERE unique_key = $1`, uniqueKey); err != nil {
		return nil, false, fmt.Errorf("failed to load relationship for key %s: %w", uniqueKey, err)
	}
	found, err := decodeRelationship(existing.Data)
	return found, false, err
}

// insertRelationship reports whether a row was written.
func (p *PostgresRepository) insertRelationship(ctx context.Context, rel *interfaces.Relationship, uniqueKey, onConflict string) (bool, error) {
	row, err := toRelationshipRow(rel, uniqueKey)
	if err != nil {
		return false, err
	}

	res, err := p.db.NamedExecContext(ctx,
		`INSERT INTO relationships (guid, type_name, end1_guid, end2_guid, unique_key, version, create_time, data)
		 VALUES (:guid, :type_name, :end1_guid, :end2_guid, :unique_key, :version, :create_time, :data) `+onConflict, row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
			return false, fmt.Errorf("%w: relationship end of %s", interfaces.ErrEntityNotFound, rel.GUID)
		}
		return false, fmt.Errorf("failed to create relationship: %w", err)
	}
	n, err := res.RowsAffected()
	return err == nil && n == 1, nil
}

// GetRelationship returns the relationship with the given GUID.
func (p *PostgresRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	return p.getRelationship(ctx, guid)
}

// UpdateRelationship replaces the stored relationship when the versions match.
func (p *PostgresRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := p.getRelationship(ctx, relationship.GUID)
	if err != nil {
		return nil, err
	}
	next, err := nextRelationship(stored, relationship)
	if err != nil {
		return nil, err
	}
	data, err := encodeRelationship(next)
	if err != nil {
		return nil, err
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE relationships SET version = $1, data = $2 WHERE guid = $3 AND version = $4`,
		next.Version, data, stored.GUID, stored.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update relationship: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, fmt.Errorf("%w: relationship %s changed concurrently", interfaces.ErrVersionConflict, stored.GUID)
	}
	return next, nil
}

// DeleteRelationship removes the relationship.
func (p *PostgresRepository) DeleteRelationship(ctx context.Context, guid string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM relationships WHERE guid = $1`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
	}
	return nil
}

// GetRelationshipsForEntity returns the relationships attached to an entity.
func (p *PostgresRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	var rows []relationshipRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT * FROM relationships
		 WHERE (end1_guid = $1 OR end2_guid = $1) AND ($2 = '' OR type_name = $2)
		 ORDER BY create_time, guid`,
		entityGUID, typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}

	out := make([]*interfaces.Relationship, 0, len(rows))
	for _, row := range rows {
		rel, err := decodeRelationship(row.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	sortRelationships(out)
	return out, nil
}

// Available pings the database.
func (p *PostgresRepository) Available(ctx context.Context) bool {
	return p.db.PingContext(ctx) == nil
}

// Name returns a unique identifier for this repository.
func (p *PostgresRepository) Name() string {
	return "postgres"
}

// LocationURI returns the URI that identifies this repository.
func (p *PostgresRepository) LocationURI() string {
	return p.locationURI
}

// Close closes the connection pool.
func (p *PostgresRepository) Close() error {
	return p.db.Close()
}

func (p *PostgresRepository) getEntity(ctx context.Context, q sqlx.QueryerContext, guid string) (*interfaces.EntityDetail, error) {
	var row entityRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT * FROM entities WHERE guid = $1`, guid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return nil, err
	}
	return decodeEntity(row.Data)
}

func (p *PostgresRepository) getRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	var row relationshipRow
	if err := p.db.GetContext(ctx, &row, `SELECT * FROM relationships WHERE guid = $1`, guid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
		}
		return nil, err
	}
	return decodeRelationship(row.Data)
}

// redactDSN drops the password from a connection URI before it is logged or
// reported.
func redactDSN(dsn string) string {
	loc, err := interfaces.NewRepositoryLocation(dsn)
	if err != nil || loc.Auth == "" {
		return dsn
	}
	return loc.Scheme + "://" + loc.Host + loc.Path
}
