package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/core/valueobjects"
)

// MaxGroupSize is the most mutations one TransactWriteItems call accepts.
// Larger groups are refused rather than split, since a split group is no
// longer applied atomically.
const MaxGroupSize = 100

const entityTypeEdge = "SYNERGY_EDGE"

// Client is the subset of the DynamoDB API used by DocumentStore
type Client interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// edgeItem represents the DynamoDB item structure for a synergy edge
type edgeItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	EntityType  string  `dynamodbav:"EntityType"`
	Source      string  `dynamodbav:"Source"`
	Target      string  `dynamodbav:"Target"`
	Score       float64 `dynamodbav:"Score"`
	LastUpdated string  `dynamodbav:"LastUpdated"`
}

func partitionKey(source valueobjects.DomainID) string {
	return fmt.Sprintf("DOMAIN#%s", source.String())
}

func sortKey(target valueobjects.DomainID) string {
	return fmt.Sprintf("EDGE#%s", target.String())
}

func itemKey(key entities.EdgeKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey(key.Source)},
		"SK": &types.AttributeValueMemberS{Value: sortKey(key.Target)},
	}
}

func toItem(edge entities.SynergyEdge) (map[string]types.AttributeValue, error) {
	item := edgeItem{
		PK:          partitionKey(edge.Source),
		SK:          sortKey(edge.Target),
		EntityType:  entityTypeEdge,
		Source:      edge.Source.String(),
		Target:      edge.Target.String(),
		Score:       edge.Score.Float64(),
		LastUpdated: edge.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge %s: %w", edge.Key(), err)
	}
	return av, nil
}

func (i edgeItem) toEdge() (entities.SynergyEdge, error) {
	source, err := valueobjects.NewDomainID(i.Source)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	target, err := valueobjects.NewDomainID(i.Target)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	score, err := valueobjects.NewScore(i.Score)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	updated, err := time.Parse(time.RFC3339Nano, i.LastUpdated)
	if err != nil {
		return entities.SynergyEdge{}, fmt.Errorf("invalid LastUpdated %q: %w", i.LastUpdated, err)
	}
	return entities.NewSynergyEdge(source, target, score, updated)
}

// DocumentStore implements ports.DocumentStore on a single DynamoDB table
type DocumentStore struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(client Client, tableName string, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		client:    client,
		tableName: tableName,
		logger:    logger.Named("dynamodb"),
	}
}

// ApplyMutations writes a group in one transaction. Every write is
// idempotent, so a failed group may be retried as a whole.
func (s *DocumentStore) ApplyMutations(ctx context.Context, mutations []ports.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	if len(mutations) > MaxGroupSize {
		return fmt.Errorf("group of %d mutations exceeds the transaction limit of %d", len(mutations), MaxGroupSize)
	}
	return s.transactWrite(ctx, mutations)
}

func (s *DocumentStore) transactWrite(ctx context.Context, mutations []ports.Mutation) error {
	transactItems := make([]types.TransactWriteItem, 0, len(mutations))
	for _, m := range mutations {
		switch m.Kind {
		case ports.MutationUpsert:
			item, err := toItem(m.Edge)
			if err != nil {
				return err
			}
			transactItems = append(transactItems, types.TransactWriteItem{
				Put: &types.Put{TableName: aws.String(s.tableName), Item: item},
			})
		case ports.MutationDelete:
			transactItems = append(transactItems, types.TransactWriteItem{
				Delete: &types.Delete{TableName: aws.String(s.tableName), Key: itemKey(m.Key)},
			})
		default:
			return fmt.Errorf("unknown mutation kind: %s", m.Kind)
		}
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return fmt.Errorf("transact write of %d mutations failed: %w", len(mutations), err)
	}
	return nil
}

// LoadEdges scans the table for edges scoring at least minScore
func (s *DocumentStore) LoadEdges(ctx context.Context, minScore float64) ([]entities.SynergyEdge, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityTypeEdge)).
		And(expression.Name("Score").GreaterThanEqual(expression.Value(minScore)))

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var edges []entities.SynergyEdge
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edges: %w", err)
		}

		var items []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}

		for _, item := range items {
			edge, err := item.toEdge()
			if err != nil {
				s.logger.Warn("Skipping malformed edge item",
					zap.String("pk", item.PK),
					zap.String("sk", item.SK),
					zap.Error(err))
				continue
			}
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

// Ping verifies the table is reachable with the current credentials
func (s *DocumentStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", s.tableName, err)
	}
	return nil
}

var _ ports.DocumentStore = (*DocumentStore)(nil)
