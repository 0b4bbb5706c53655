package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entityRow is the table layout shared by the SQL backends. The full instance
// is kept as JSON in Data, the other columns exist for lookups.
type entityRow struct {
	GUID       string    `gorm:"column:guid;primaryKey" db:"guid"`
	TypeName   string    `gorm:"column:type_name;index" db:"type_name"`
	UniqueKey  *string   `gorm:"column:unique_key;uniqueIndex" db:"unique_key"`
	Version    int64     `gorm:"column:version" db:"version"`
	CreateTime time.Time `gorm:"column:create_time;index" db:"create_time"`
	Data       []byte    `gorm:"column:data" db:"data"`
}

func (entityRow) TableName() string { return "entities" }

type relationshipRow struct {
	GUID       string    `gorm:"column:guid;primaryKey" db:"guid"`
	TypeName   string    `gorm:"column:type_name;index" db:"type_name"`
	End1GUID   string    `gorm:"column:end1_guid;index" db:"end1_guid"`
	End2GUID   string    `gorm:"column:end2_guid;index" db:"end2_guid"`
	UniqueKey  *string   `gorm:"column:unique_key;uniqueIndex" db:"unique_key"`
	Version    int64     `gorm:"column:version" db:"version"`
	CreateTime time.Time `gorm:"column:create_time;index" db:"create_time"`
	Data       []byte    `gorm:"column:data" db:"data"`
}

func (relationshipRow) TableName() string { return "relationships" }

func toEntityRow(entity *interfaces.EntityDetail, uniqueKey string) (entityRow, error) {
	data, err := encodeEntity(entity)
	if err != nil {
		return entityRow{}, err
	}
	row := entityRow{
		GUID:       entity.GUID,
		TypeName:   entity.TypeName,
		Version:    entity.Version,
		CreateTime: entity.CreateTime,
		Data:       data,
	}
	if uniqueKey != "" {
		row.UniqueKey = &uniqueKey
	}
	return row, nil
}

func toRelationshipRow(rel *interfaces.Relationship, uniqueKey string) (relationshipRow, error) {
	data, err := encodeRelationship(rel)
	if err != nil {
		return relationshipRow{}, err
	}
	row := relationshipRow{
		GUID:       rel.GUID,
		TypeName:   rel.TypeName,
		End1GUID:   rel.End1.GUID,
		End2GUID:   rel.End2.GUID,
		Version:    rel.Version,
		CreateTime: rel.CreateTime,
		Data:       data,
	}
	if uniqueKey != "" {
		row.UniqueKey = &uniqueKey
	}
	return row, nil
}

// SQLiteRepository stores the metadata repository in SQLite through GORM.
type SQLiteRepository struct {
	db          *gorm.DB
	log         *slog.Logger
	locationURI string
}

// NewSQLiteRepository opens the database file at path and migrates the
// schema. An empty path or ":memory:" opens a private in-memory database.
func NewSQLiteRepository(path string, log *slog.Logger) (*SQLiteRepository, error) {
	if log == nil {
		log = slog.Default()
	}

	uri := "sqlite://" + path
	dsn := path
	if path == "" || path == ":memory:" {
		dsn = ":memory:"
		uri = "sqlite://memory"
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writers anyway, a single connection also keeps an
	// in-memory database alive and shared.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&entityRow{}, &relationshipRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	log.Debug("Opened sqlite repository", slog.String("dsn", dsn))

	return &SQLiteRepository{
		db:          gdb,
		log:         log,
		locationURI: uri,
	}, nil
}

// CreateEntity stores a new entity.
func (s *SQLiteRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := newEntity(entity)
	if err != nil {
		return nil, err
	}
	row, err := toEntityRow(stored, "")
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	return stored, nil
}

// FindOrCreateEntity returns the entity registered under uniqueKey or creates it.
func (s *SQLiteRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
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

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unique_key"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create entity: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return stored, true, nil
	}

	var existing entityRow
	if err := s.db.WithContext(ctx).Where("unique_key = ?", uniqueKey).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load entity for key %s: %w", uniqueKey, err)
	}
	found, err := decodeEntity(existing.Data)
	return found, false, err
}

// GetEntity returns the entity with the given GUID.
func (s *SQLiteRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	return s.getEntity(s.db.WithContext(ctx), guid)
}

// UpdateEntity replaces the stored entity when the versions match.
func (s *SQLiteRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	var next *interfaces.EntityDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := s.getEntity(tx, entity.GUID)
		if err != nil {
			return err
		}
		next, err = nextEntity(stored, entity)
		if err != nil {
			return err
		}
		data, err := encodeEntity(next)
		if err != nil {
			return err
		}
		res := tx.Model(&entityRow{}).
			Where("guid = ? AND version = ?", stored.GUID, stored.Version).
			Updates(map[string]any{
				"type_name": next.TypeName,
				"version":   next.Version,
				"data":      data,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: entity %s changed concurrently", interfaces.ErrVersionConflict, stored.GUID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteEntity removes the entity and every relationship attached to it.
func (s *SQLiteRepository) DeleteEntity(ctx context.Context, guid string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("(end1_guid = ? OR end2_guid = ?)", guid, guid).Delete(&relationshipRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("guid = ?", guid).Delete(&entityRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return nil
	})
}

// FindEntities returns the entities matching search, oldest first.
func (s *SQLiteRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	q := s.db.WithContext(ctx).Model(&entityRow{}).Order("create_time ASC, guid ASC")
	if len(search.TypeNames) > 0 {
		q = q.Where("type_name IN ?", search.TypeNames)
	}

	var rows []entityRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
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
func (s *SQLiteRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, err
	}
	row, err := toRelationshipRow(stored, "")
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkEnds(tx, stored); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindOrCreateRelationship returns the relationship registered under
// uniqueKey or creates it.
func (s *SQLiteRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, false, err
	}
	row, err := toRelationshipRow(stored, uniqueKey)
	if err != nil {
		return nil, false, err
	}

	var result *interfaces.Relationship
	var created bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkEnds(tx, stored); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unique_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("failed to create relationship: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			result, created = stored, true
			return nil
		}

		var existing relationshipRow
		if err := tx.Where("unique_key = ?", uniqueKey).First(&existing).Error; err != nil {
			return fmt.Errorf("failed to load relationship for key %s: %w", uniqueKey, err)
		}
		var err error
		result, err = decodeRelationship(existing.Data)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetRelationship returns the relationship with the given GUID.
func (s *SQLiteRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	return s.getRelationship(s.db.WithContext(ctx), guid)
}

// UpdateRelationship replaces the stored relationship when the versions match.
func (s *SQLiteRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	var next *interfaces.Relationship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := s.getRelationship(tx, relationship.GUID)
		if err != nil {
			return err
		}
		next, err = nextRelationship(stored, relationship)
		if err != nil {
			return err
		}
		data, err := encodeRelationship(next)
		if err != nil {
			return err
		}
		res := tx.Model(&relationshipRow{}).
			Where("guid = ? AND version = ?", stored.GUID, stored.Version).
			Updates(map[string]any{
				"version": next.Version,
				"data":    data,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: relationship %s changed concurrently", interfaces.ErrVersionConflict, stored.GUID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteRelationship removes the relationship.
func (s *SQLiteRepository) DeleteRelationship(ctx context.Context, guid string) error {
	res := s.db.WithContext(ctx).Where("guid = ?", guid).Delete(&relationshipRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
	}
	return nil
}

// GetRelationshipsForEntity returns the relationships attached to an entity.
func (s *SQLiteRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	q := s.db.WithContext(ctx).Model(&relationshipRow{}).
		Where("(end1_guid = ? OR end2_guid = ?)", entityGUID, entityGUID).
		Order("create_time ASC, guid ASC")
	if typeName != "" {
		q = q.Where("type_name = ?", typeName)
	}

	var rows []relationshipRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
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
func (s *SQLiteRepository) Available(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

// Name returns a unique identifier for this repository.
func (s *SQLiteRepository) Name() string {
	return "sqlite"
}

// LocationURI returns the URI that identifies this repository.
func (s *SQLiteRepository) LocationURI() string {
	return s.locationURI
}

// Close closes the database.
func (s *SQLiteRepository) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteRepository) getEntity(db *gorm.DB, guid string) (*interfaces.EntityDetail, error) {
	var row entityRow
	if err := db.Where("guid = ?", guid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return nil, err
	}
	return decodeEntity(row.Data)
}

func (s *SQLiteRepository) checkEnds(tx *gorm.DB, rel *interfaces.Relationship) error {
	var count int64
	if err := tx.Model(&entityRow{}).Where("guid IN ?", []string{rel.End1.GUID, rel.End2.GUID}).Count(&count).Error; err != nil {
		return err
	}
	expected := int64(2)
	if rel.End1.GUID == rel.End2.GUID {
		expected = 1
	}
	if count != expected {
		return fmt.Errorf("%w: relationship end of %s", interfaces.ErrEntityNotFound, rel.GUID)
	}
	return nil
}

func (s *SQLiteRepository) getRelationship(db *gorm.DB, guid string) (*interfaces.Relationship, error) {
	var row relationshipRow
	if err := db.Where("guid = ?", guid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
		}
		return nil, err
	}
	return decodeRelationship(row.Data)
}
