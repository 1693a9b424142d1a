package storage

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ElectionStorage persists elections and their lifecycle flags. Activate,
// AnnounceResults and Reopen are single atomic operations.
type ElectionStorage interface {
	Get(ctx context.Context, id string) (*Election, error)
	GetAll(ctx context.Context) ([]*Election, error)
	// GetActive returns ErrNotFound when no election is active.
	GetActive(ctx context.Context) (*Election, error)
	Create(ctx context.Context, election *Election) error
	// Activate marks id active and every other election inactive.
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	// AnnounceResults finalizes an election that has not been announced yet and
	// returns the stored result. It fails with ErrResultsAlreadyAnnounced when
	// another announcement won.
	AnnounceResults(ctx context.Context, id, winnerID string, winnerIDs []string, at time.Time) (*Election, error)
	// Reopen clears the announcement and activates id exclusively.
	Reopen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type DynamoElectionStorage struct {
	Client          *dynamodb.Client
	TableName       string
	GuardsTableName string
}

func (s *DynamoElectionStorage) Get(ctx context.Context, id string) (*Election, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.TableName,
		Key:            stringKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logging.Log.Errorf("ELECTION: GetItem for ID %s failed: %v", id, err)
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var election Election
	if err := attributevalue.UnmarshalMap(out.Item, &election); err != nil {
		logging.Log.Errorf("ELECTION: failed to unmarshal election: %v", err)
		return nil, err
	}
	return &election, nil
}

// GetAll returns every election, newest first.
func (s *DynamoElectionStorage) GetAll(ctx context.Context) ([]*Election, error) {
	items, err := scanAll(ctx, s.Client, &dynamodb.ScanInput{TableName: &s.TableName})
	if err != nil {
		logging.Log.Errorf("ELECTION: scan failed: %v", err)
		return nil, err
	}

	var elections []*Election
	if err := attributevalue.UnmarshalListOfMaps(items, &elections); err != nil {
		logging.Log.Errorf("ELECTION: failed to unmarshal election list: %v", err)
		return nil, err
	}
	sort.SliceStable(elections, func(i, j int) bool {
		return elections[i].CreatedAt.After(elections[j].CreatedAt)
	})
	return elections, nil
}

func (s *DynamoElectionStorage) GetActive(ctx context.Context) (*Election, error) {
	active, err := s.scanActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrNotFound
	}
	return active[0], nil
}

func (s *DynamoElectionStorage) scanActive(ctx context.Context) ([]*Election, error) {
	items, err := scanAll(ctx, s.Client, &dynamodb.ScanInput{
		TableName:                 &s.TableName,
		FilterExpression:          aws.String("Active = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":true": &types.AttributeValueMemberBOOL{Value: true}},
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		logging.Log.Errorf("ELECTION: scan for active elections failed: %v", err)
		return nil, err
	}

	var elections []*Election
	if err := attributevalue.UnmarshalListOfMaps(items, &elections); err != nil {
		logging.Log.Errorf("ELECTION: failed to unmarshal active elections: %v", err)
		return nil, err
	}
	return elections, nil
}

func (s *DynamoElectionStorage) Create(ctx context.Context, election *Election) error {
	item, err := attributevalue.MarshalMap(election)
	if err != nil {
		logging.Log.Errorf("ELECTION: failed to marshal election: %v", err)
		return err
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.TableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		logging.Log.Errorf("ELECTION: failed to create election: %v", err)
		return err
	}
	logging.Log.Infof("ELECTION: created election %s (%s)", election.ID, election.Title)
	return nil
}

func (s *DynamoElectionStorage) Activate(ctx context.Context, id string) error {
	return s.activateExclusive(ctx, id, types.Update{
		TableName:                 &s.TableName,
		Key:                       stringKey(id),
		UpdateExpression:          aws.String("SET Active = :true"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":true": &types.AttributeValueMemberBOOL{Value: true}},
	})
}

func (s *DynamoElectionStorage) Reopen(ctx context.Context, id string) error {
	return s.activateExclusive(ctx, id, types.Update{
		TableName:           &s.TableName,
		Key:                 stringKey(id),
		UpdateExpression:    aws.String("SET Active = :true, ResultsAnnounced = :false, WinnerID = :empty REMOVE WinnerIDs, AnnouncedAt"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":empty": &types.AttributeValueMemberS{Value: ""},
		},
	})
}

// activateExclusive applies target to id and clears Active on every other
// active election in one transaction. The active marker's version check makes
// two concurrent activations conflict instead of both committing.
func (s *DynamoElectionStorage) activateExclusive(ctx context.Context, id string, target types.Update) error {
	marker, err := s.readMarker(ctx)
	if err != nil {
		return err
	}
	active, err := s.scanActive(ctx)
	if err != nil {
		return err
	}

	next, err := attributevalue.MarshalMap(activeMarker{Key: activeMarkerKey, ElectionID: id, Version: marker.Version + 1})
	if err != nil {
		return err
	}
	markerPut := types.Put{
		TableName: aws.String(s.GuardsTableName),
		Item:      next,
	}
	if marker.Version == 0 {
		markerPut.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		markerPut.ConditionExpression = aws.String("Version = :v")
		markerPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(marker.Version, 10)},
		}
	}

	items := []types.TransactWriteItem{{Put: &markerPut}, {Update: &target}}
	for _, e := range active {
		if e.ID == id {
			continue
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 &s.TableName,
			Key:                       stringKey(e.ID),
			UpdateExpression:          aws.String("SET Active = :false"),
			ConditionExpression:       aws.String("attribute_exists(PK)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":false": &types.AttributeValueMemberBOOL{Value: false}},
		}})
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if failed, ok := cancelledAt(err); ok {
			for _, i := range failed {
				if i == 1 {
					return ErrNotFound
				}
			}
			logging.Log.Warnf("ELECTION: activation of %s raced another activation", id)
			return ErrConcurrentUpdate
		}
		logging.Log.Errorf("ELECTION: failed to activate election %s: %v", id, err)
		return err
	}
	logging.Log.Infof("ELECTION: election %s is now the active election (%d deactivated)", id, len(active))
	return nil
}

func (s *DynamoElectionStorage) readMarker(ctx context.Context) (*activeMarker, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.GuardsTableName),
		Key:            stringKey(activeMarkerKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logging.Log.Errorf("ELECTION: failed to read active marker: %v", err)
		return nil, err
	}
	var m activeMarker
	if out.Item != nil {
		if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (s *DynamoElectionStorage) Deactivate(ctx context.Context, id string) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.TableName,
		Key:                       stringKey(id),
		UpdateExpression:          aws.String("SET Active = :false"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":false": &types.AttributeValueMemberBOOL{Value: false}},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		logging.Log.Errorf("ELECTION: failed to deactivate election %s: %v", id, err)
		return err
	}
	return nil
}

func (s *DynamoElectionStorage) AnnounceResults(ctx context.Context, id, winnerID string, winnerIDs []string, at time.Time) (*Election, error) {
	ids, err := attributevalue.Marshal(winnerIDs)
	if err != nil {
		return nil, err
	}
	when, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, err
	}

	out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.TableName,
		Key:                 stringKey(id),
		UpdateExpression:    aws.String("SET ResultsAnnounced = :true, Active = :false, WinnerID = :winner, WinnerIDs = :winners, AnnouncedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(PK) AND ResultsAnnounced = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":    &types.AttributeValueMemberBOOL{Value: true},
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":winner":  &types.AttributeValueMemberS{Value: winnerID},
			":winners": ids,
			":at":      when,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			logging.Log.Warnf("ELECTION: results for %s were already announced", id)
			return nil, ErrResultsAlreadyAnnounced
		}
		logging.Log.Errorf("ELECTION: failed to announce results for %s: %v", id, err)
		return nil, err
	}

	var election Election
	if err := attributevalue.UnmarshalMap(out.Attributes, &election); err != nil {
		return nil, err
	}
	logging.Log.Infof("ELECTION: results announced for %s, winner %s", id, winnerID)
	return &election, nil
}

func (s *DynamoElectionStorage) Delete(ctx context.Context, id string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &s.TableName,
		Key:                 stringKey(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		logging.Log.Errorf("ELECTION: failed to delete election %s: %v", id, err)
		return err
	}
	logging.Log.Infof("ELECTION: deleted election %s", id)
	return nil
}
