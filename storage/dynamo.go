package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Uniqueness guards live in their own table so scans of the entity tables never
// see them. Each guard is an item whose PK encodes the unique value.
const (
	guardUsername    = "username#"
	guardStudentID   = "student#"
	guardEmail       = "email#"
	guardApplication = "application#"
	activeMarkerKey  = "election#active"
)

type guard struct {
	Key   string `dynamodbav:"PK"`
	Owner string `dynamodbav:"Owner"`
}

// activeMarker serializes exclusive activations: every activation must bump
// Version with a conditional write.
type activeMarker struct {
	Key        string `dynamodbav:"PK"`
	ElectionID string `dynamodbav:"ElectionID"`
	Version    int64  `dynamodbav:"Version"`
}

func stringKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
	}
}

func putGuard(table, key, owner string) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(guard{Key: key, Owner: owner})
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}, nil
}

func deleteGuard(table, key string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(table),
			Key:       stringKey(key),
		},
	}
}

// getGuard returns the owner recorded on a guard item, or "" when it is free.
func getGuard(ctx context.Context, client *dynamodb.Client, table, key string) (string, error) {
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       stringKey(key),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", nil
	}
	var g guard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return "", err
	}
	return g.Owner, nil
}

// cancelledAt reports which transaction items failed their condition.
func cancelledAt(err error) ([]int, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	var failed []int
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed = append(failed, i)
		}
	}
	return failed, true
}

func isConditionFailed(err error) bool {
	var cce *types.ConditionalCheckFailedException
	return errors.As(err, &cce)
}

// scanAll walks every page of a scan.
func scanAll(ctx context.Context, client *dynamodb.Client, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func queryAll(ctx context.Context, client *dynamodb.Client, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func countAll(ctx context.Context, client *dynamodb.Client, input *dynamodb.ScanInput) (int, error) {
	input.Select = types.SelectCount
	total := 0
	p := dynamodb.NewScanPaginator(client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}
