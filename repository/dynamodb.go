package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// Single-table layout:
//
//	pk=ENTITY#<guid>  sk=META          the entity
//	pk=ENTITY#<guid>  sk=REL#<guid>    adjacency entry per attached relationship
//	pk=REL#<guid>     sk=META          the relationship
//	pk=UNIQUE#<key>   sk=META          unique key registration (entities)
//	pk=RUNIQUE#<key>  sk=META          unique key registration (relationships)
const (
	dynamoEntityPrefix    = "ENTITY#"
	dynamoRelPrefix       = "REL#"
	dynamoUniquePrefix    = "UNIQUE#"
	dynamoRelUniquePrefix = "RUNIQUE#"
	dynamoMetaSK          = "META"
)

// DynamoClient is the subset of the DynamoDB API the repository uses.
// It is satisfied by *dynamodb.Client.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type dynamoItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	GUID       string `dynamodbav:"guid,omitempty"`
	TypeName   string `dynamodbav:"typeName,omitempty"`
	UniqueKey  string `dynamodbav:"uniqueKey,omitempty"`
	Version    int64  `dynamodbav:"version,omitempty"`
	CreateTime string `dynamodbav:"createTime,omitempty"`
	Data       string `dynamodbav:"data,omitempty"`
}

// DynamoDBOptions configures NewDynamoDBRepository.
type DynamoDBOptions struct {
	Table    string
	Region   string
	Endpoint string // optional, for DynamoDB Local
	Create   bool   // create the table when it does not exist
}

// DynamoDBRepository stores the metadata repository in one DynamoDB table.
// Unique key registration and relationship creation use conditional
// transactional writes, entity updates are conditioned on the stored version.
type DynamoDBRepository struct {
	client DynamoClient
	table  string
	log    *slog.Logger
}

// NewDynamoDBRepository creates a repository from the default AWS
// configuration chain.
func NewDynamoDBRepository(ctx context.Context, opts DynamoDBOptions, log *slog.Logger) (*DynamoDBRepository, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("%w: dynamodb table name is required", interfaces.ErrInvalidRepositoryURI)
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		// DynamoDB Local accepts any signed request.
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	repo := NewDynamoDBRepositoryWithClient(client, opts.Table, log)
	if opts.Create {
		if err := repo.ensureTable(ctx); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// NewDynamoDBRepositoryWithClient wraps an existing client.
func NewDynamoDBRepositoryWithClient(client DynamoClient, table string, log *slog.Logger) *DynamoDBRepository {
	if log == nil {
		log = slog.Default()
	}
	return &DynamoDBRepository{
		client: client,
		table:  table,
		log:    log,
	}
}

// CreateEntity stores a new entity.
func (d *DynamoDBRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := newEntity(entity)
	if err != nil {
		return nil, err
	}
	put, err := d.entityPut(stored, "")
	if err != nil {
		return nil, err
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 put.TableName,
		Item:                      put.Item,
		ConditionExpression:       put.ConditionExpression,
		ExpressionAttributeNames:  put.ExpressionAttributeNames,
		ExpressionAttributeValues: put.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put entity: %w", err)
	}
	return stored, nil
}

// FindOrCreateEntity returns the entity registered under uniqueKey or creates it.
func (d *DynamoDBRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newEntity(entity)
	if err != nil {
		return nil, false, err
	}

	entityPut, err := d.entityPut(stored, uniqueKey)
	if err != nil {
		return nil, false, err
	}
	uniquePut, err := d.newItemPut(dynamoItem{
		PK:   dynamoUniquePrefix + uniqueKey,
		SK:   dynamoMetaSK,
		GUID: stored.GUID,
	})
	if err != nil {
		return nil, false, err
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: entityPut},
			{Put: uniquePut},
		},
	})
	if err == nil {
		return stored, true, nil
	}

	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil, false, fmt.Errorf("failed to register entity: %w", err)
	}

	registration, err := d.getItem(ctx, dynamoUniquePrefix+uniqueKey, dynamoMetaSK)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load registration for key %s: %w", uniqueKey, err)
	}
	existing, err := d.GetEntity(ctx, registration.GUID)
	return existing, false, err
}

// GetEntity returns the entity with the given GUID.
func (d *DynamoDBRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	item, err := d.getItem(ctx, dynamoEntityPrefix+guid, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return nil, err
	}
	return decodeEntity([]byte(item.Data))
}

// UpdateEntity replaces the stored entity when the versions match.
func (d *DynamoDBRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	item, err := d.getItem(ctx, dynamoEntityPrefix+entity.GUID, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, entity.GUID)
		}
		return nil, err
	}
	stored, err := decodeEntity([]byte(item.Data))
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
	updated := *item
	updated.TypeName = next.TypeName
	updated.Version = next.Version
	updated.Data = string(data)

	if err := d.putVersioned(ctx, updated, stored.Version); err != nil {
		return nil, fmt.Errorf("entity %s: %w", stored.GUID, err)
	}
	return next, nil
}

// DeleteEntity removes the entity, its adjacency entries, every relationship
// attached to it and its unique key registration. The removal is not a single
// transaction: relationships are removed before the entity itself.
func (d *DynamoDBRepository) DeleteEntity(ctx context.Context, guid string) error {
	item, err := d.getItem(ctx, dynamoEntityPrefix+guid, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
		}
		return err
	}

	relGUIDs, err := d.adjacentRelationships(ctx, guid)
	if err != nil {
		return err
	}
	for _, relGUID := range relGUIDs {
		if err := d.DeleteRelationship(ctx, relGUID); err != nil && !errors.Is(err, interfaces.ErrRelationshipNotFound) {
			return err
		}
	}

	if item.UniqueKey != "" {
		if err := d.deleteItem(ctx, dynamoUniquePrefix+item.UniqueKey, dynamoMetaSK); err != nil {
			return err
		}
	}
	return d.deleteItem(ctx, dynamoEntityPrefix+guid, dynamoMetaSK)
}

// FindEntities returns the entities matching search, oldest first.
func (d *DynamoDBRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	filter := expression.Name("sk").Equal(expression.Value(dynamoMetaSK)).
		And(expression.Name("pk").BeginsWith(dynamoEntityPrefix))
	if len(search.TypeNames) > 0 {
		operands := make([]expression.OperandBuilder, 0, len(search.TypeNames))
		for _, name := range search.TypeNames {
			operands = append(operands, expression.Value(name))
		}
		filter = filter.And(expression.Name("typeName").In(operands[0], operands[1:]...))
	}
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	var out []*interfaces.EntityDetail
	var startKey map[string]types.AttributeValue
	for {
		res, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(d.table),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for _, raw := range res.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
			}
			entity, err := decodeEntity([]byte(item.Data))
			if err != nil {
				return nil, err
			}
			if search.Matches(entity) {
				out = append(out, entity)
			}
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		startKey = res.LastEvaluatedKey
	}
	sortEntities(out)
	return out, nil
}

// CreateRelationship stores a new relationship between two stored entities.
func (d *DynamoDBRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, err
	}
	items, err := d.relationshipWrites(stored, "")
	if err != nil {
		return nil, err
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return nil, fmt.Errorf("%w: relationship end of %s", interfaces.ErrEntityNotFound, stored.GUID)
		}
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}
	return stored, nil
}

// FindOrCreateRelationship returns the relationship registered under
// uniqueKey or creates it. The registration is written in the same
// transaction as the relationship.
func (d *DynamoDBRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, false, err
	}
	items, err := d.relationshipWrites(stored, uniqueKey)
	if err != nil {
		return nil, false, err
	}
	uniquePut, err := d.newItemPut(dynamoItem{
		PK:   dynamoRelUniquePrefix + uniqueKey,
		SK:   dynamoMetaSK,
		GUID: stored.GUID,
	})
	if err != nil {
		return nil, false, err
	}
	items = append(items, types.TransactWriteItem{Put: uniquePut})

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return stored, true, nil
	}
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil, false, fmt.Errorf("failed to register relationship: %w", err)
	}

	// Either the key is taken or an end is missing.
	registration, err := d.getItem(ctx, dynamoRelUniquePrefix+uniqueKey, dynamoMetaSK)
	if errors.Is(err, errItemNotFound) {
		return nil, false, fmt.Errorf("%w: relationship end of %s", interfaces.ErrEntityNotFound, stored.GUID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load registration for key %s: %w", uniqueKey, err)
	}
	existing, err := d.GetRelationship(ctx, registration.GUID)
	return existing, false, err
}

// relationshipWrites builds the transaction items storing rel, its adjacency
// entries and the existence checks on both ends.
func (d *DynamoDBRepository) relationshipWrites(rel *interfaces.Relationship, uniqueKey string) ([]types.TransactWriteItem, error) {
	data, err := encodeRelationship(rel)
	if err != nil {
		return nil, err
	}

	relPut, err := d.newItemPut(dynamoItem{
		PK:         dynamoRelPrefix + rel.GUID,
		SK:         dynamoMetaSK,
		GUID:       rel.GUID,
		TypeName:   rel.TypeName,
		UniqueKey:  uniqueKey,
		Version:    rel.Version,
		CreateTime: rel.CreateTime.Format(time.RFC3339Nano),
		Data:       string(data),
	})
	if err != nil {
		return nil, err
	}
	items := []types.TransactWriteItem{{Put: relPut}}

	ends := []string{rel.End1.GUID}
	if rel.End2.GUID != rel.End1.GUID {
		ends = append(ends, rel.End2.GUID)
	}
	for _, end := range ends {
		check, err := d.existsCheck(dynamoEntityPrefix+end, dynamoMetaSK)
		if err != nil {
			return nil, err
		}
		adj, err := d.newItemPut(dynamoItem{
			PK:       dynamoEntityPrefix + end,
			SK:       dynamoRelPrefix + rel.GUID,
			GUID:     rel.GUID,
			TypeName: rel.TypeName,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: check}, types.TransactWriteItem{Put: adj})
	}
	return items, nil
}

// GetRelationship returns the relationship with the given GUID.
func (d *DynamoDBRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	item, err := d.getItem(ctx, dynamoRelPrefix+guid, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
		}
		return nil, err
	}
	return decodeRelationship([]byte(item.Data))
}

// UpdateRelationship replaces the stored relationship when the versions match.
func (d *DynamoDBRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	item, err := d.getItem(ctx, dynamoRelPrefix+relationship.GUID, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, relationship.GUID)
		}
		return nil, err
	}
	stored, err := decodeRelationship([]byte(item.Data))
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
	updated := *item
	updated.Version = next.Version
	updated.Data = string(data)

	if err := d.putVersioned(ctx, updated, stored.Version); err != nil {
		return nil, fmt.Errorf("relationship %s: %w", stored.GUID, err)
	}
	return next, nil
}

// DeleteRelationship removes the relationship, both adjacency entries and its
// unique key registration.
func (d *DynamoDBRepository) DeleteRelationship(ctx context.Context, guid string) error {
	item, err := d.getItem(ctx, dynamoRelPrefix+guid, dynamoMetaSK)
	if err != nil {
		if errors.Is(err, errItemNotFound) {
			return fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
		}
		return err
	}
	rel, err := decodeRelationship([]byte(item.Data))
	if err != nil {
		return err
	}
	for _, end := range []string{rel.End1.GUID, rel.End2.GUID} {
		if err := d.deleteItem(ctx, dynamoEntityPrefix+end, dynamoRelPrefix+guid); err != nil {
			return err
		}
	}
	if item.UniqueKey != "" {
		if err := d.deleteItem(ctx, dynamoRelUniquePrefix+item.UniqueKey, dynamoMetaSK); err != nil {
			return err
		}
	}
	return d.deleteItem(ctx, dynamoRelPrefix+guid, dynamoMetaSK)
}

// GetRelationshipsForEntity returns the relationships attached to an entity.
func (d *DynamoDBRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	relGUIDs, err := d.adjacentRelationships(ctx, entityGUID)
	if err != nil {
		return nil, err
	}

	out := make([]*interfaces.Relationship, 0, len(relGUIDs))
	for _, relGUID := range relGUIDs {
		rel, err := d.GetRelationship(ctx, relGUID)
		if errors.Is(err, interfaces.ErrRelationshipNotFound) {
			// Removed between the adjacency query and the read.
			continue
		}
		if err != nil {
			return nil, err
		}
		if typeName == "" || rel.TypeName == typeName {
			out = append(out, rel)
		}
	}
	sortRelationships(out)
	return out, nil
}

// Available checks that the table can be described.
func (d *DynamoDBRepository) Available(ctx context.Context) bool {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	return err == nil
}

// Name returns a unique identifier for this repository.
func (d *DynamoDBRepository) Name() string {
	return "dynamodb"
}

// LocationURI returns the URI that identifies this repository.
func (d *DynamoDBRepository) LocationURI() string {
	return "dynamodb://" + d.table
}

// Close is a no-op, the SDK client holds no resources that need releasing.
func (d *DynamoDBRepository) Close() error {
	return nil
}

var errItemNotFound = errors.New("item not found")

func (d *DynamoDBRepository) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

func (d *DynamoDBRepository) getItem(ctx context.Context, pk, sk string) (*dynamoItem, error) {
	res, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", pk, err)
	}
	if len(res.Item) == 0 {
		return nil, errItemNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(res.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s: %w", pk, err)
	}
	return &item, nil
}

func (d *DynamoDBRepository) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (d *DynamoDBRepository) entityPut(entity *interfaces.EntityDetail, uniqueKey string) (*types.Put, error) {
	data, err := encodeEntity(entity)
	if err != nil {
		return nil, err
	}
	return d.newItemPut(dynamoItem{
		PK:         dynamoEntityPrefix + entity.GUID,
		SK:         dynamoMetaSK,
		GUID:       entity.GUID,
		TypeName:   entity.TypeName,
		UniqueKey:  uniqueKey,
		Version:    entity.Version,
		CreateTime: entity.CreateTime.Format(time.RFC3339Nano),
		Data:       string(data),
	})
}

// newItemPut builds a put that fails when the item already exists.
func (d *DynamoDBRepository) newItemPut(item dynamoItem) (*types.Put, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item %s: %w", item.PK, err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("pk"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}
	return &types.Put{
		TableName:                 aws.String(d.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

func (d *DynamoDBRepository) existsCheck(pk, sk string) (*types.ConditionCheck, error) {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("pk"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}
	return &types.ConditionCheck{
		TableName:                 aws.String(d.table),
		Key:                       d.key(pk, sk),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// putVersioned writes item if the stored version is still expected.
func (d *DynamoDBRepository) putVersioned(ctx context.Context, item dynamoItem, expected int64) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("version").Equal(expression.Value(expected))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return fmt.Errorf("%w: changed concurrently", interfaces.ErrVersionConflict)
		}
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (d *DynamoDBRepository) adjacentRelationships(ctx context.Context, entityGUID string) ([]string, error) {
	keyCond := expression.Key("pk").Equal(expression.Value(dynamoEntityPrefix + entityGUID)).
		And(expression.Key("sk").BeginsWith(dynamoRelPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	var out []string
	var startKey map[string]types.AttributeValue
	for {
		res, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		for _, raw := range res.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal adjacency entry: %w", err)
			}
			out = append(out, item.GUID)
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		startKey = res.LastEvaluatedKey
	}
	return out, nil
}

func (d *DynamoDBRepository) ensureTable(ctx context.Context) error {
	if d.Available(ctx) {
		return nil
	}

	d.log.Info("Creating DynamoDB table", slog.String("table", d.table))
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create table %s: %w", d.table, err)
	}

	for attempt := 0; attempt < 30; attempt++ {
		out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
		if err == nil && out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("table %s did not become active", d.table)
}
