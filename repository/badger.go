package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

const (
	badgerEntityPrefix    = "entity/"
	badgerRelPrefix       = "rel/"
	badgerAdjPrefix       = "adj/"
	badgerTypePrefix      = "type/"
	badgerUniquePrefix    = "ukey/"
	badgerEntityKeyPrefix = "ekey/"
	badgerRelUniquePrefix = "rukey/"
	badgerRelKeyPrefix    = "rkey/"

	// Attempts made when a transaction loses a conflict to a concurrent writer.
	badgerConflictRetries = 5
)

// BadgerRepository stores the metadata repository in an embedded Badger
// key/value store. Every write runs in a single serializable transaction, so
// FindOrCreateEntity is atomic: the loser of a concurrent registration sees
// badger.ErrConflict, retries and finds the winner's entity. The same holds
// for FindOrCreateRelationship.
type BadgerRepository struct {
	db          *badger.DB
	log         *slog.Logger
	locationURI string
}

// NewBadgerRepository opens (or creates) a Badger store in dir. An empty dir
// keeps the store in memory.
func NewBadgerRepository(dir string, log *slog.Logger) (*BadgerRepository, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogger{log: log})
	uri := fmt.Sprintf("badger://%s", dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
		uri = "badger://memory"
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerRepository{
		db:          db,
		log:         log,
		locationURI: uri,
	}, nil
}

// CreateEntity stores a new entity.
func (b *BadgerRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := newEntity(entity)
	if err != nil {
		return nil, err
	}
	err = b.update(func(txn *badger.Txn) error {
		return b.putEntity(txn, stored, true)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindOrCreateEntity returns the entity registered under uniqueKey or creates it.
func (b *BadgerRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newEntity(entity)
	if err != nil {
		return nil, false, err
	}

	var result *interfaces.EntityDetail
	var created bool
	err = b.update(func(txn *badger.Txn) error {
		guid, err := getString(txn, badgerUniquePrefix+uniqueKey)
		if err == nil {
			result, err = b.getEntity(txn, guid)
			created = false
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := b.putEntity(txn, stored, true); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerUniquePrefix+uniqueKey), []byte(stored.GUID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerEntityKeyPrefix+stored.GUID), []byte(uniqueKey)); err != nil {
			return err
		}
		result = stored
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetEntity returns the entity with the given GUID.
func (b *BadgerRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	var entity *interfaces.EntityDetail
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = b.getEntity(txn, guid)
		return err
	})
	return entity, err
}

// UpdateEntity replaces the stored entity when the versions match.
func (b *BadgerRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	var next *interfaces.EntityDetail
	err := b.update(func(txn *badger.Txn) error {
		stored, err := b.getEntity(txn, entity.GUID)
		if err != nil {
			return err
		}
		next, err = nextEntity(stored, entity)
		if err != nil {
			return err
		}
		if stored.TypeName != next.TypeName {
			if err := txn.Delete([]byte(typeKey(stored.TypeName, stored.GUID))); err != nil {
				return err
			}
		}
		return b.putEntity(txn, next, false)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteEntity removes the entity and every relationship attached to it.
func (b *BadgerRepository) DeleteEntity(ctx context.Context, guid string) error {
	return b.update(func(txn *badger.Txn) error {
		stored, err := b.getEntity(txn, guid)
		if err != nil {
			return err
		}

		relGUIDs, err := b.adjacentRelationships(txn, guid)
		if err != nil {
			return err
		}
		for _, relGUID := range relGUIDs {
			if err := b.deleteRelationship(txn, relGUID); err != nil {
				return err
			}
		}

		uniqueKey, err := getString(txn, badgerEntityKeyPrefix+guid)
		switch {
		case err == nil:
			if err := txn.Delete([]byte(badgerUniquePrefix + uniqueKey)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(badgerEntityKeyPrefix + guid)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Delete([]byte(typeKey(stored.TypeName, guid))); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerEntityPrefix + guid))
	})
}

// FindEntities returns the entities matching search, oldest first.
func (b *BadgerRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	var out []*interfaces.EntityDetail
	err := b.db.View(func(txn *badger.Txn) error {
		var guids []string
		if len(search.TypeNames) == 0 {
			keys, err := scanKeys(txn, badgerEntityPrefix)
			if err != nil {
				return err
			}
			guids = keys
		} else {
			for _, typeName := range search.TypeNames {
				keys, err := scanKeys(txn, badgerTypePrefix+typeName+"/")
				if err != nil {
					return err
				}
				guids = append(guids, keys...)
			}
		}

		for _, guid := range guids {
			entity, err := b.getEntity(txn, guid)
			if err != nil {
				return err
			}
			if search.Matches(entity) {
				out = append(out, entity)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEntities(out)
	return out, nil
}

// CreateRelationship stores a new relationship between two stored entities.
func (b *BadgerRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, err
	}
	err = b.update(func(txn *badger.Txn) error {
		return b.putRelationship(txn, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindOrCreateRelationship returns the relationship registered under
// uniqueKey or creates it.
func (b *BadgerRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, false, err
	}

	var result *interfaces.Relationship
	var created bool
	err = b.update(func(txn *badger.Txn) error {
		guid, err := getString(txn, badgerRelUniquePrefix+uniqueKey)
		if err == nil {
			result, err = b.getRelationship(txn, guid)
			created = false
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := b.putRelationship(txn, stored); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerRelUniquePrefix+uniqueKey), []byte(stored.GUID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerRelKeyPrefix+stored.GUID), []byte(uniqueKey)); err != nil {
			return err
		}
		result = stored
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetRelationship returns the relationship with the given GUID.
func (b *BadgerRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	var rel *interfaces.Relationship
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rel, err = b.getRelationship(txn, guid)
		return err
	})
	return rel, err
}

// UpdateRelationship replaces the stored relationship when the versions match.
func (b *BadgerRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	var next *interfaces.Relationship
	err := b.update(func(txn *badger.Txn) error {
		stored, err := b.getRelationship(txn, relationship.GUID)
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
		return txn.Set([]byte(badgerRelPrefix+next.GUID), data)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteRelationship removes the relationship.
func (b *BadgerRepository) DeleteRelationship(ctx context.Context, guid string) error {
	return b.update(func(txn *badger.Txn) error {
		return b.deleteRelationship(txn, guid)
	})
}

// GetRelationshipsForEntity returns the relationships attached to an entity.
func (b *BadgerRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	var out []*interfaces.Relationship
	err := b.db.View(func(txn *badger.Txn) error {
		relGUIDs, err := b.adjacentRelationships(txn, entityGUID)
		if err != nil {
			return err
		}
		for _, relGUID := range relGUIDs {
			rel, err := b.getRelationship(txn, relGUID)
			if err != nil {
				return err
			}
			if typeName == "" || rel.TypeName == typeName {
				out = append(out, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRelationships(out)
	return out, nil
}

// Available reports whether the store is open.
func (b *BadgerRepository) Available(ctx context.Context) bool {
	return !b.db.IsClosed()
}

// Name returns a unique identifier for this repository.
func (b *BadgerRepository) Name() string {
	return "badger"
}

// LocationURI returns the URI that identifies this repository.
func (b *BadgerRepository) LocationURI() string {
	return b.locationURI
}

// Close closes the underlying store.
func (b *BadgerRepository) Close() error {
	return b.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (b *BadgerRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.log.Debug("Badger transaction conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("badger transaction failed after %d attempts: %w", badgerConflictRetries, err)
}

func (b *BadgerRepository) getEntity(txn *badger.Txn, guid string) (*interfaces.EntityDetail, error) {
	item, err := txn.Get([]byte(badgerEntityPrefix + guid))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeEntity(data)
}

func (b *BadgerRepository) putEntity(txn *badger.Txn, entity *interfaces.EntityDetail, create bool) error {
	key := []byte(badgerEntityPrefix + entity.GUID)
	if create {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("entity %s already exists", entity.GUID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}
	data, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	if err := txn.Set(key, data); err != nil {
		return err
	}
	return txn.Set([]byte(typeKey(entity.TypeName, entity.GUID)), nil)
}

func (b *BadgerRepository) getRelationship(txn *badger.Txn, guid string) (*interfaces.Relationship, error) {
	item, err := txn.Get([]byte(badgerRelPrefix + guid))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
		}
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeRelationship(data)
}

func (b *BadgerRepository) putRelationship(txn *badger.Txn, rel *interfaces.Relationship) error {
	data, err := encodeRelationship(rel)
	if err != nil {
		return err
	}
	for _, end := range []string{rel.End1.GUID, rel.End2.GUID} {
		if _, err := txn.Get([]byte(badgerEntityPrefix + end)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: relationship end %s", interfaces.ErrEntityNotFound, end)
			}
			return err
		}
	}
	if err := txn.Set([]byte(badgerRelPrefix+rel.GUID), data); err != nil {
		return err
	}
	if err := txn.Set([]byte(adjKey(rel.End1.GUID, rel.GUID)), nil); err != nil {
		return err
	}
	return txn.Set([]byte(adjKey(rel.End2.GUID, rel.GUID)), nil)
}

func (b *BadgerRepository) deleteRelationship(txn *badger.Txn, guid string) error {
	rel, err := b.getRelationship(txn, guid)
	if err != nil {
		return err
	}
	uniqueKey, err := getString(txn, badgerRelKeyPrefix+guid)
	switch {
	case err == nil:
		if err := txn.Delete([]byte(badgerRelUniquePrefix + uniqueKey)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(badgerRelKeyPrefix + guid)); err != nil {
			return err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	if err := txn.Delete([]byte(adjKey(rel.End1.GUID, guid))); err != nil {
		return err
	}
	if err := txn.Delete([]byte(adjKey(rel.End2.GUID, guid))); err != nil {
		return err
	}
	return txn.Delete([]byte(badgerRelPrefix + guid))
}

func (b *BadgerRepository) adjacentRelationships(txn *badger.Txn, entityGUID string) ([]string, error) {
	return scanKeys(txn, badgerAdjPrefix+entityGUID+"/")
}

// scanKeys returns the key suffixes under prefix.
func scanKeys(txn *badger.Txn, prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		key := string(it.Item().KeyCopy(nil))
		out = append(out, strings.TrimPrefix(key, prefix))
	}
	return out, nil
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func typeKey(typeName, guid string) string {
	return badgerTypePrefix + typeName + "/" + guid
}

func adjKey(entityGUID, relGUID string) string {
	return badgerAdjPrefix + entityGUID + "/" + relGUID
}

// badgerLogger routes badger's internal logging to slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
