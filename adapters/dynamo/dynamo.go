// Package dynamo provides the DynamoDB implementation of the record
// store collaborator. Secondary indexes map onto global secondary
// indexes of the same name; planned queries become key condition
// expressions, never scans.
package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// attribute names for system fields; declared fields keep their schema
// names at the top level so GSIs can key on them.
const (
	attrID        = "id"
	attrOwner     = "owner"
	attrCreatedAt = "created_at"
	attrUpdatedAt = "updated_at"
)
