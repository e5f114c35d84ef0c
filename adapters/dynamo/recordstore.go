package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = ports.ErrRecordNotFound

// RecordStore persists records in DynamoDB, one table per model
// (prefix + model name). It implements ports.RecordStore.
type RecordStore struct {
	client Client
	prefix string
}

// NewRecordStore creates a record store. prefix is prepended to model
// names to form table names (e.g. "datagate_").
func NewRecordStore(client Client, prefix string) *RecordStore {
	return &RecordStore{client: client, prefix: prefix}
}

func (s *RecordStore) tableName(model string) string {
	return s.prefix + model
}

// Get retrieves a record by primary id.
func (s *RecordStore) Get(ctx context.Context, model, id string) (record.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName(model)),
		Key:            map[string]types.AttributeValue{attrID: &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return record.Record{}, fmt.Errorf("get item: %w", err)
	}
	if out.Item == nil {
		return record.Record{}, ErrNotFound
	}
	return unmarshalRecord(out.Item)
}

// Put stores a record (create or replace).
func (s *RecordStore) Put(ctx context.Context, model string, rec record.Record) error {
	item, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName(model)),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Delete removes a record by primary id.
func (s *RecordStore) Delete(ctx context.Context, model, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName(model)),
		Key:       map[string]types.AttributeValue{attrID: &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Query reads records through a planned access path.
func (s *RecordStore) Query(ctx context.Context, model string, plan query.Plan, limit int) ([]record.Record, error) {
	input, err := BuildQueryInput(s.tableName(model), plan, limit)
	if err != nil {
		return nil, err
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	records := make([]record.Record, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := unmarshalRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// BuildQueryInput translates an index plan into a DynamoDB query.
// A plan over a secondary index targets the GSI of the same name;
// the primary-key plan queries the table itself.
func BuildQueryInput(table string, plan query.Plan, limit int) (*dynamodb.QueryInput, error) {
	key := expression.KeyEqual(expression.Key(plan.PartitionKey), expression.Value(plan.PartitionValue))

	if plan.UsesSort() {
		sortCond, err := sortCondition(plan)
		if err != nil {
			return nil, err
		}
		key = key.And(sortCond)
	}

	expr, err := expression.NewBuilder().WithKeyCondition(key).Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if !plan.Primary() {
		input.IndexName = aws.String(plan.IndexName)
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	return input, nil
}

func sortCondition(plan query.Plan) (expression.KeyConditionBuilder, error) {
	k := expression.Key(plan.SortKey)

	if plan.SortRange == nil {
		return expression.KeyEqual(k, expression.Value(plan.SortValue)), nil
	}

	r := *plan.SortRange
	switch r.Op {
	case query.RangeGT:
		return expression.KeyGreaterThan(k, expression.Value(r.Value)), nil
	case query.RangeGTE:
		return expression.KeyGreaterThanEqual(k, expression.Value(r.Value)), nil
	case query.RangeLT:
		return expression.KeyLessThan(k, expression.Value(r.Value)), nil
	case query.RangeLTE:
		return expression.KeyLessThanEqual(k, expression.Value(r.Value)), nil
	case query.RangeBetween:
		return expression.KeyBetween(k, expression.Value(r.Value), expression.Value(r.Upper)), nil
	case query.RangeBegins:
		prefix, ok := r.Value.(string)
		if !ok {
			return expression.KeyConditionBuilder{}, fmt.Errorf("begins_with requires a string operand")
		}
		return expression.KeyBeginsWith(k, prefix), nil
	}

	return expression.KeyConditionBuilder{}, fmt.Errorf("unknown range operator %q", r.Op)
}

// marshalRecord flattens a record into one item: system fields plus
// declared fields at the top level, timestamps as RFC3339 strings so
// they sort lexicographically as sort keys.
func marshalRecord(rec record.Record) (map[string]types.AttributeValue, error) {
	flat := make(map[string]any, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		flat[k] = v
	}
	flat[attrID] = rec.ID
	flat[attrOwner] = rec.Owner
	flat[attrCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	flat[attrUpdatedAt] = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)

	item, err := attributevalue.MarshalMap(flat)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return item, nil
}

func unmarshalRecord(item map[string]types.AttributeValue) (record.Record, error) {
	var flat map[string]any
	if err := attributevalue.UnmarshalMap(item, &flat); err != nil {
		return record.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}

	var rec record.Record
	rec.Fields = make(map[string]any, len(flat))

	for k, v := range flat {
		switch k {
		case attrID:
			rec.ID, _ = v.(string)
		case attrOwner:
			rec.Owner, _ = v.(string)
		case attrCreatedAt:
			rec.CreatedAt = parseTime(v)
		case attrUpdatedAt:
			rec.UpdatedAt = parseTime(v)
		default:
			rec.Fields[k] = v
		}
	}

	return rec, nil
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
