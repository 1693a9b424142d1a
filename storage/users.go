package storage

import (
	"context"
	"strings"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type UserStorage interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByRole(ctx context.Context, role Role) ([]*User, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}

type DynamoUserStorage struct {
	Client          *dynamodb.Client
	TableName       string
	GuardsTableName string
}

func (s *DynamoUserStorage) Get(ctx context.Context, id string) (*User, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.TableName,
		Key:       stringKey(id),
	})
	if err != nil {
		logging.Log.Errorf("USER: GetItem for ID %s failed: %v", id, err)
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var user User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		logging.Log.Errorf("USER: failed to unmarshal user: %v", err)
		return nil, err
	}
	return &user, nil
}

func (s *DynamoUserStorage) GetByUsername(ctx context.Context, username string) (*User, error) {
	owner, err := getGuard(ctx, s.Client, s.GuardsTableName, guardUsername+strings.ToLower(username))
	if err != nil {
		logging.Log.Errorf("USER: failed to resolve username %s: %v", username, err)
		return nil, err
	}
	if owner == "" {
		return nil, ErrNotFound
	}
	return s.Get(ctx, owner)
}

func (s *DynamoUserStorage) GetByRole(ctx context.Context, role Role) ([]*User, error) {
	items, err := scanAll(ctx, s.Client, &dynamodb.ScanInput{
		TableName:                 &s.TableName,
		FilterExpression:          aws.String("#role = :role"),
		ExpressionAttributeNames:  map[string]string{"#role": "Role"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":role": &types.AttributeValueMemberS{Value: string(role)}},
	})
	if err != nil {
		logging.Log.Errorf("USER: scan by role %s failed: %v", role, err)
		return nil, err
	}

	var users []*User
	if err := attributevalue.UnmarshalListOfMaps(items, &users); err != nil {
		logging.Log.Errorf("USER: failed to unmarshal user list: %v", err)
		return nil, err
	}
	return users, nil
}

func (s *DynamoUserStorage) CountByRole(ctx context.Context, role Role) (int, error) {
	n, err := countAll(ctx, s.Client, &dynamodb.ScanInput{
		TableName:                 &s.TableName,
		FilterExpression:          aws.String("#role = :role"),
		ExpressionAttributeNames:  map[string]string{"#role": "Role"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":role": &types.AttributeValueMemberS{Value: string(role)}},
	})
	if err != nil {
		logging.Log.Errorf("USER: count by role %s failed: %v", role, err)
		return 0, err
	}
	return n, nil
}

func (s *DynamoUserStorage) Count(ctx context.Context) (int, error) {
	n, err := countAll(ctx, s.Client, &dynamodb.ScanInput{TableName: &s.TableName})
	if err != nil {
		logging.Log.Errorf("USER: count failed: %v", err)
		return 0, err
	}
	return n, nil
}

// Create stores the user together with its username guard in one transaction.
func (s *DynamoUserStorage) Create(ctx context.Context, user *User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		logging.Log.Errorf("USER: failed to marshal user: %v", err)
		return err
	}
	g, err := putGuard(s.GuardsTableName, guardUsername+user.Username, user.ID)
	if err != nil {
		return err
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.TableName,
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			g,
		},
	})
	if err != nil {
		if _, ok := cancelledAt(err); ok {
			logging.Log.Warnf("USER: username %s already exists", user.Username)
			return ErrDuplicateUsername
		}
		logging.Log.Errorf("USER: failed to create user: %v", err)
		return err
	}
	return nil
}

func (s *DynamoUserStorage) Delete(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{TableName: &s.TableName, Key: stringKey(id)}},
			deleteGuard(s.GuardsTableName, guardUsername+user.Username),
		},
	})
	if err != nil {
		logging.Log.Errorf("USER: failed to delete user with ID %s: %v", id, err)
		return err
	}
	logging.Log.Infof("USER: deleted user with ID %s", id)
	return nil
}
