package storage

import (
	"context"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BallotStorage is append-only. Create fails with ErrDuplicateBallot when the
// voter already has a ballot in the election.
type BallotStorage interface {
	Create(ctx context.Context, ballot *Ballot) error
	Get(ctx context.Context, electionID, voterID string) (*Ballot, error)
	GetByElection(ctx context.Context, electionID string) ([]*Ballot, error)
	CountByCandidate(ctx context.Context, electionID string) (map[string]int, error)
	Count(ctx context.Context) (int, error)
}

// DynamoBallotStorage keys ballots by election (PK) and voter (SK).
type DynamoBallotStorage struct {
	Client    *dynamodb.Client
	TableName string
}

func (s *DynamoBallotStorage) Create(ctx context.Context, ballot *Ballot) error {
	item, err := attributevalue.MarshalMap(ballot)
	if err != nil {
		logging.Log.Errorf("VOTE: failed to marshal ballot: %v", err)
		return err
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.TableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			logging.Log.Warnf("VOTE: voter %s already voted in election %s", ballot.VoterID, ballot.ElectionID)
			return ErrDuplicateBallot
		}
		logging.Log.Errorf("VOTE: failed to create ballot: %v", err)
		return err
	}
	return nil
}

func (s *DynamoBallotStorage) Get(ctx context.Context, electionID, voterID string) (*Ballot, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.TableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: electionID},
			"SK": &types.AttributeValueMemberS{Value: voterID},
		},
	})
	if err != nil {
		logging.Log.Errorf("VOTE: GetItem for %s/%s failed: %v", electionID, voterID, err)
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var ballot Ballot
	if err := attributevalue.UnmarshalMap(out.Item, &ballot); err != nil {
		logging.Log.Errorf("VOTE: failed to unmarshal ballot: %v", err)
		return nil, err
	}
	return &ballot, nil
}

func (s *DynamoBallotStorage) GetByElection(ctx context.Context, electionID string) ([]*Ballot, error) {
	items, err := queryAll(ctx, s.Client, &dynamodb.QueryInput{
		TableName:              &s.TableName,
		KeyConditionExpression: aws.String("PK = :election"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":election": &types.AttributeValueMemberS{Value: electionID},
		},
	})
	if err != nil {
		logging.Log.Errorf("VOTE: failed to query ballots for election %s: %v", electionID, err)
		return nil, err
	}

	var ballots []*Ballot
	if err := attributevalue.UnmarshalListOfMaps(items, &ballots); err != nil {
		logging.Log.Errorf("VOTE: failed to unmarshal ballots for election %s: %v", electionID, err)
		return nil, err
	}
	return ballots, nil
}

func (s *DynamoBallotStorage) CountByCandidate(ctx context.Context, electionID string) (map[string]int, error) {
	ballots, err := s.GetByElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, b := range ballots {
		counts[b.CandidateID]++
	}
	return counts, nil
}

func (s *DynamoBallotStorage) Count(ctx context.Context) (int, error) {
	n, err := countAll(ctx, s.Client, &dynamodb.ScanInput{TableName: &s.TableName})
	if err != nil {
		logging.Log.Errorf("VOTE: count failed: %v", err)
		return 0, err
	}
	return n, nil
}
