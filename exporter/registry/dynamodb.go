package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

const (
	dynamoTableSuffix  = "SynapseMetaTables"
	attributeTableName = "tableName"
	attributeTableID   = "tableId"
)

// DynamoDB is a Store backed by the <prefix>SynapseMetaTables table, keyed by tableName.
type DynamoDB struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

func NewDynamoDB(client dynamodbiface.DynamoDBAPI, prefix string) *DynamoDB {
	return &DynamoDB{client: client, table: prefix + dynamoTableSuffix}
}

func (d *DynamoDB) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            map[string]*dynamodb.AttributeValue{attributeTableName: {S: aws.String(key)}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("getting %s from %s: %w", key, d.table, err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}
	tableID := out.Item[attributeTableID]
	if tableID == nil || aws.StringValue(tableID.S) == "" {
		return "", false, fmt.Errorf("item %s of %s has no %s", key, d.table, attributeTableID)
	}
	return aws.StringValue(tableID.S), true, nil
}

func (d *DynamoDB) Put(ctx context.Context, key, tableID string) error {
	_, err := d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]*dynamodb.AttributeValue{
			attributeTableName: {S: aws.String(key)},
			attributeTableID:   {S: aws.String(tableID)},
		},
		ConditionExpression: aws.String("attribute_not_exists(" + attributeTableName + ")"),
	})
	var awsErr awserr.Error
	if errors.As(err, &awsErr) && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return fmt.Errorf("putting %s into %s: %w", key, d.table, ErrAlreadyRegistered)
	}
	if err != nil {
		return fmt.Errorf("putting %s into %s: %w", key, d.table, err)
	}
	return nil
}
