package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// beanHandler holds the operations every bean handler shares for its base
// entity type.
type beanHandler[B any] struct {
	repo     *RepositoryHandler
	convert  Converter[B]
	typeName string
	name     string
	log      *slog.Logger
}

func newBeanHandler[B any](repo *RepositoryHandler, convert Converter[B], typeName, name string, log *slog.Logger) beanHandler[B] {
	if log == nil {
		log = slog.Default()
	}
	return beanHandler[B]{
		repo:     repo,
		convert:  convert,
		typeName: typeName,
		name:     name,
		log:      log.With("handler", name),
	}
}

func (b *beanHandler[B]) observe(operation string) {
	observe(b.name, operation)
}

// subtype returns typeName, or the base type when it is empty, after checking
// it is the base type or below it.
func (b *beanHandler[B]) subtype(typeName string) (string, error) {
	if typeName == "" {
		return b.typeName, nil
	}
	if err := b.repo.types.ValidateEntityType(typeName, b.typeName); err != nil {
		return "", err
	}
	return typeName, nil
}

func (b *beanHandler[B]) create(ctx context.Context, caller interfaces.Caller, typeName string, props PropertiesBuilder, effectivity interfaces.Effectivity, classifications []interfaces.Classification, operation string) (string, error) {
	b.observe(operation)
	bag := props.InstanceProperties()
	if err := validateName(bag.GetString(interfaces.QualifiedNameProperty), "qualifiedName"); err != nil {
		return "", err
	}
	typeName, err := b.subtype(typeName)
	if err != nil {
		return "", err
	}
	entity, err := b.repo.CreateEntity(ctx, caller, b.typeName, EntitySpec{
		TypeName:        typeName,
		Properties:      bag,
		Classifications: classifications,
		Effectivity:     effectivity,
	}, operation)
	if err != nil {
		return "", err
	}
	return entity.GUID, nil
}

// update replaces or merges the entity's properties. A replace must carry a
// qualified name and resets the effectivity window; a merge only changes the
// window when one is given.
func (b *beanHandler[B]) update(ctx context.Context, caller interfaces.Caller, guid string, props PropertiesBuilder, effectivity interfaces.Effectivity, merge bool, operation string) error {
	b.observe(operation)
	bag := props.InstanceProperties()
	var window *interfaces.Effectivity
	if !merge {
		if err := validateName(bag.GetString(interfaces.QualifiedNameProperty), "qualifiedName"); err != nil {
			return err
		}
		window = &effectivity
	} else if effectivity.EffectiveFrom != nil || effectivity.EffectiveTo != nil {
		window = &effectivity
	}
	_, _, err := b.repo.UpdateEntity(ctx, caller, guid, "guid", b.typeName, EntityUpdate{
		Properties:  bag,
		Merge:       merge,
		Effectivity: window,
	}, operation)
	return err
}

func (b *beanHandler[B]) remove(ctx context.Context, caller interfaces.Caller, guid, operation string) error {
	b.observe(operation)
	return b.repo.DeleteEntity(ctx, caller, guid, "guid", b.typeName, operation)
}

func (b *beanHandler[B]) get(ctx context.Context, caller interfaces.Caller, guid, operation string) (B, error) {
	b.observe(operation)
	entity, err := b.repo.GetEntity(ctx, caller, guid, "guid", b.typeName, operation)
	if err != nil {
		var zero B
		return zero, err
	}
	return b.convert(entity, nil)
}

func (b *beanHandler[B]) convertEntities(entities []*interfaces.EntityDetail) ([]B, error) {
	out := make([]B, 0, len(entities))
	for _, entity := range entities {
		bean, err := b.convert(entity, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, bean)
	}
	return out, nil
}

func (b *beanHandler[B]) find(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging, operation string) ([]B, error) {
	b.observe(operation)
	entities, err := b.repo.FindEntities(ctx, caller, searchString, b.typeName, paging, operation)
	if err != nil {
		return nil, err
	}
	return b.convertEntities(entities)
}

func (b *beanHandler[B]) getByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging, operation string) ([]B, error) {
	b.observe(operation)
	entities, err := b.repo.GetEntitiesByName(ctx, caller, name, b.typeName, paging, operation)
	if err != nil {
		return nil, err
	}
	return b.convertEntities(entities)
}

func (b *beanHandler[B]) getByType(ctx context.Context, caller interfaces.Caller, typeName string, paging interfaces.Paging, operation string) ([]B, error) {
	b.observe(operation)
	typeName, err := b.subtype(typeName)
	if err != nil {
		return nil, err
	}
	entities, err := b.repo.GetEntitiesByType(ctx, caller, typeName, paging, operation)
	if err != nil {
		return nil, err
	}
	return b.convertEntities(entities)
}

// getByDomain returns the entities of typeName in the governance domain.
// AllDomains (0) matches every entity.
func (b *beanHandler[B]) getByDomain(ctx context.Context, caller interfaces.Caller, typeName string, domain int64, paging interfaces.Paging, operation string) ([]B, error) {
	b.observe(operation)
	typeName, err := b.subtype(typeName)
	if err != nil {
		return nil, err
	}
	entities, err := b.repo.findEntities(ctx, caller, typeName, interfaces.EntitySearch{}, func(entity *interfaces.EntityDetail) bool {
		return domain == 0 || entity.Properties.GetInt(interfaces.DomainIdentifierProperty) == domain
	}, paging, operation)
	if err != nil {
		return nil, err
	}
	return b.convertEntities(entities)
}

// related returns the beans for the entities linked to guid, which must be of
// the handler's base type.
func (b *beanHandler[B]) related(ctx context.Context, caller interfaces.Caller, guid, relationshipType string, relatedEnd int, paging interfaces.Paging, operation string) ([]B, error) {
	return b.relatedTo(ctx, caller, RelatedQuery{
		GUID:              guid,
		GUIDParameterName: "guid",
		GUIDType:          b.typeName,
		RelationshipType:  relationshipType,
		RelatedEnd:        relatedEnd,
		RelatedType:       b.typeName,
	}, paging, operation)
}

// relatedTo returns the beans for the entities query selects.
func (b *beanHandler[B]) relatedTo(ctx context.Context, caller interfaces.Caller, query RelatedQuery, paging interfaces.Paging, operation string) ([]B, error) {
	b.observe(operation)
	related, err := b.repo.GetRelatedEntities(ctx, caller, query, paging, operation)
	if err != nil {
		return nil, err
	}
	return convertAll(related, b.convert)
}

func (b *beanHandler[B]) link(ctx context.Context, caller interfaces.Caller, relationshipType, end1GUID, end2GUID string, props interfaces.InstanceProperties, effectivity interfaces.Effectivity, operation string) (string, error) {
	b.observe(operation)
	rel, err := b.repo.LinkElements(ctx, caller, Link{
		TypeName:    relationshipType,
		End1GUID:    end1GUID,
		End2GUID:    end2GUID,
		Properties:  props,
		Effectivity: effectivity,
	}, operation)
	if err != nil {
		return "", err
	}
	return rel.GUID, nil
}

func (b *beanHandler[B]) unlink(ctx context.Context, caller interfaces.Caller, relationshipType, end1GUID, end2GUID, operation string) error {
	b.observe(operation)
	return b.repo.UnlinkElements(ctx, caller, relationshipType, end1GUID, end2GUID, operation)
}

func (b *beanHandler[B]) classify(ctx context.Context, caller interfaces.Caller, guid, classificationName string, props interfaces.InstanceProperties, operation string) error {
	b.observe(operation)
	_, err := b.repo.SetClassification(ctx, caller, guid, "guid", b.typeName, classificationName, props, operation)
	return err
}

func (b *beanHandler[B]) declassify(ctx context.Context, caller interfaces.Caller, guid, classificationName, operation string) error {
	b.observe(operation)
	_, err := b.repo.RemoveClassification(ctx, caller, guid, "guid", b.typeName, classificationName, operation)
	return err
}

// oneOf checks name is one of allowed.
func oneOf(name, parameterName string, allowed ...string) error {
	for _, a := range allowed {
		if name == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v, got %q", interfaces.ErrInvalidParameter, parameterName, allowed, name)
}
