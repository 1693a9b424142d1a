package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CandidacyStorage persists candidate applications. Create and Update enforce
// uniqueness of (user, election), student ID and email at the storage level.
type CandidacyStorage interface {
	Get(ctx context.Context, id string) (*Candidacy, error)
	GetAll(ctx context.Context) ([]*Candidacy, error)
	GetByElection(ctx context.Context, electionID string) ([]*Candidacy, error)
	GetByUser(ctx context.Context, userID string) ([]*Candidacy, error)
	ExistsForUser(ctx context.Context, userID, electionID string) (bool, error)
	// IdentityTaken reports whether another candidacy than excludeID already
	// uses studentID or email.
	IdentityTaken(ctx context.Context, studentID, email, excludeID string) (bool, error)
	Create(ctx context.Context, c *Candidacy) error
	// Update applies an owner's edit. It only succeeds while the stored
	// candidacy is still pending and never touches status or rejection
	// reason; a moderated or missing candidacy yields ErrNotFound.
	Update(ctx context.Context, previous, updated *Candidacy) error
	// SetStatus moves every listed candidacy to status and returns how many
	// were found.
	SetStatus(ctx context.Context, ids []string, status CandidacyStatus, reason string, at time.Time) (int, error)
	// Delete withdraws a pending candidacy, with the same ErrNotFound rule as
	// Update. DeleteByElection removes candidacies in any status.
	Delete(ctx context.Context, c *Candidacy) error
	DeleteByElection(ctx context.Context, electionID string) (int, error)
}

type DynamoCandidacyStorage struct {
	Client          *dynamodb.Client
	TableName       string
	GuardsTableName string
}

func normalizeIdentity(c *Candidacy) {
	c.StudentID = strings.TrimSpace(c.StudentID)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
}

func (s *DynamoCandidacyStorage) Get(ctx context.Context, id string) (*Candidacy, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.TableName,
		Key:       stringKey(id),
	})
	if err != nil {
		logging.Log.Errorf("CANDIDACY: GetItem for ID %s failed: %v", id, err)
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var c Candidacy
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		logging.Log.Errorf("CANDIDACY: failed to unmarshal candidacy: %v", err)
		return nil, err
	}
	return &c, nil
}

func (s *DynamoCandidacyStorage) GetAll(ctx context.Context) ([]*Candidacy, error) {
	return s.scan(ctx, &dynamodb.ScanInput{TableName: &s.TableName})
}

func (s *DynamoCandidacyStorage) GetByElection(ctx context.Context, electionID string) ([]*Candidacy, error) {
	return s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 &s.TableName,
		FilterExpression:          aws.String("ElectionID = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: electionID}},
	})
}

func (s *DynamoCandidacyStorage) GetByUser(ctx context.Context, userID string) ([]*Candidacy, error) {
	return s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 &s.TableName,
		FilterExpression:          aws.String("UserID = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": &types.AttributeValueMemberS{Value: userID}},
	})
}

func (s *DynamoCandidacyStorage) scan(ctx context.Context, input *dynamodb.ScanInput) ([]*Candidacy, error) {
	items, err := scanAll(ctx, s.Client, input)
	if err != nil {
		logging.Log.Errorf("CANDIDACY: scan failed: %v", err)
		return nil, err
	}

	var list []*Candidacy
	if err := attributevalue.UnmarshalListOfMaps(items, &list); err != nil {
		logging.Log.Errorf("CANDIDACY: failed to unmarshal candidacy list: %v", err)
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *DynamoCandidacyStorage) ExistsForUser(ctx context.Context, userID, electionID string) (bool, error) {
	owner, err := getGuard(ctx, s.Client, s.GuardsTableName, applicationKey(userID, electionID))
	if err != nil {
		logging.Log.Errorf("CANDIDACY: application lookup failed: %v", err)
		return false, err
	}
	return owner != "", nil
}

func (s *DynamoCandidacyStorage) IdentityTaken(ctx context.Context, studentID, email, excludeID string) (bool, error) {
	probe := &Candidacy{StudentID: studentID, Email: email}
	normalizeIdentity(probe)
	for _, key := range []string{guardStudentID + probe.StudentID, guardEmail + probe.Email} {
		owner, err := getGuard(ctx, s.Client, s.GuardsTableName, key)
		if err != nil {
			logging.Log.Errorf("CANDIDACY: identity lookup failed: %v", err)
			return false, err
		}
		if owner != "" && owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func applicationKey(userID, electionID string) string {
	return guardApplication + userID + "#" + electionID
}

// Create writes the candidacy and its three guards in one transaction. The
// index of the failed condition tells which uniqueness rule was broken.
func (s *DynamoCandidacyStorage) Create(ctx context.Context, c *Candidacy) error {
	normalizeIdentity(c)
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		logging.Log.Errorf("CANDIDACY: failed to marshal candidacy: %v", err)
		return err
	}

	writes := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           &s.TableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}}}
	for _, key := range []string{applicationKey(c.UserID, c.ElectionID), guardStudentID + c.StudentID, guardEmail + c.Email} {
		g, err := putGuard(s.GuardsTableName, key, c.ID)
		if err != nil {
			return err
		}
		writes = append(writes, g)
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if failed, ok := cancelledAt(err); ok {
			return classifyCandidacyConflict(failed)
		}
		logging.Log.Errorf("CANDIDACY: failed to create candidacy: %v", err)
		return err
	}
	logging.Log.Infof("CANDIDACY: user %s applied for election %s", c.UserID, c.ElectionID)
	return nil
}

func classifyCandidacyConflict(failed []int) error {
	for _, i := range failed {
		if i == 1 {
			return ErrDuplicateApplication
		}
	}
	return ErrDuplicateIdentity
}

// Update replaces the stored candidacy while it is still pending. Guards move
// with the student ID and email when they change.
func (s *DynamoCandidacyStorage) Update(ctx context.Context, previous, updated *Candidacy) error {
	normalizeIdentity(updated)
	updated.Status = StatusPending
	updated.RejectionReason = ""
	item, err := attributevalue.MarshalMap(updated)
	if err != nil {
		logging.Log.Errorf("CANDIDACY: failed to marshal candidacy: %v", err)
		return err
	}

	writes := []types.TransactWriteItem{{Put: &types.Put{
		TableName:                 &s.TableName,
		Item:                      item,
		ConditionExpression:       aws.String("attribute_exists(PK) AND #status = :pending"),
		ExpressionAttributeNames:  map[string]string{"#status": "Status"},
		ExpressionAttributeValues: pendingValue(),
	}}}
	if previous.StudentID != updated.StudentID {
		g, err := putGuard(s.GuardsTableName, guardStudentID+updated.StudentID, updated.ID)
		if err != nil {
			return err
		}
		writes = append(writes, g, deleteGuard(s.GuardsTableName, guardStudentID+previous.StudentID))
	}
	if previous.Email != updated.Email {
		g, err := putGuard(s.GuardsTableName, guardEmail+updated.Email, updated.ID)
		if err != nil {
			return err
		}
		writes = append(writes, g, deleteGuard(s.GuardsTableName, guardEmail+previous.Email))
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if failed, ok := cancelledAt(err); ok {
			for _, i := range failed {
				if i == 0 {
					return ErrNotFound
				}
			}
			return ErrDuplicateIdentity
		}
		logging.Log.Errorf("CANDIDACY: failed to update candidacy %s: %v", updated.ID, err)
		return err
	}
	return nil
}

// maxTransactItems is the DynamoDB limit of items per TransactWriteItems call.
const maxTransactItems = 100

// SetStatus applies the status in transactions of up to maxTransactItems
// candidacies, so each chunk lands all or nothing.
func (s *DynamoCandidacyStorage) SetStatus(ctx context.Context, ids []string, status CandidacyStatus, reason string, at time.Time) (int, error) {
	when, err := attributevalue.Marshal(at)
	if err != nil {
		return 0, err
	}

	// A transaction may not touch the same item twice.
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	updated := 0
	for start := 0; start < len(unique); start += maxTransactItems {
		chunk := unique[start:min(start+maxTransactItems, len(unique))]
		n, err := s.setStatusChunk(ctx, chunk, status, reason, when)
		updated += n
		if err != nil {
			logging.Log.Errorf("CANDIDACY: failed to set status %s: %v", status, err)
			return updated, err
		}
	}
	return updated, nil
}

// setStatusChunk writes ids in one transaction. Unknown ids fail their
// existence condition; they are dropped and the rest is retried.
func (s *DynamoCandidacyStorage) setStatusChunk(ctx context.Context, ids []string, status CandidacyStatus, reason string, when types.AttributeValue) (int, error) {
	for len(ids) > 0 {
		writes := make([]types.TransactWriteItem, 0, len(ids))
		for _, id := range ids {
			writes = append(writes, types.TransactWriteItem{Update: s.statusUpdate(id, status, reason, when)})
		}
		_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
		if err == nil {
			return len(ids), nil
		}
		failed, ok := cancelledAt(err)
		if !ok || len(failed) == 0 {
			return 0, err
		}

		missing := make(map[int]bool, len(failed))
		for _, i := range failed {
			missing[i] = true
		}
		kept := make([]string, 0, len(ids)-len(failed))
		for i, id := range ids {
			if missing[i] {
				logging.Log.Warnf("CANDIDACY: status update skipped missing candidacy %s", id)
				continue
			}
			kept = append(kept, id)
		}
		ids = kept
	}
	return 0, nil
}

func (s *DynamoCandidacyStorage) statusUpdate(id string, status CandidacyStatus, reason string, when types.AttributeValue) *types.Update {
	update := &types.Update{
		TableName:                &s.TableName,
		Key:                      stringKey(id),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{"#status": "Status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":at":     when,
		},
	}
	if status == StatusRejected {
		update.UpdateExpression = aws.String("SET #status = :status, UpdatedAt = :at, RejectionReason = :reason")
		update.ExpressionAttributeValues[":reason"] = &types.AttributeValueMemberS{Value: reason}
	} else {
		update.UpdateExpression = aws.String("SET #status = :status, UpdatedAt = :at REMOVE RejectionReason")
	}
	return update
}

func pendingValue() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{":pending": &types.AttributeValueMemberS{Value: string(StatusPending)}}
}

func (s *DynamoCandidacyStorage) Delete(ctx context.Context, c *Candidacy) error {
	return s.remove(ctx, c, true)
}

// remove deletes the candidacy with its guards. With pendingOnly the delete is
// conditional on the stored status still being pending.
func (s *DynamoCandidacyStorage) remove(ctx context.Context, c *Candidacy, pendingOnly bool) error {
	del := &types.Delete{
		TableName:           &s.TableName,
		Key:                 stringKey(c.ID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}
	if pendingOnly {
		del.ConditionExpression = aws.String("attribute_exists(PK) AND #status = :pending")
		del.ExpressionAttributeNames = map[string]string{"#status": "Status"}
		del.ExpressionAttributeValues = pendingValue()
	}
	_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: del},
			deleteGuard(s.GuardsTableName, applicationKey(c.UserID, c.ElectionID)),
			deleteGuard(s.GuardsTableName, guardStudentID+c.StudentID),
			deleteGuard(s.GuardsTableName, guardEmail+c.Email),
		},
	})
	if err != nil {
		if _, ok := cancelledAt(err); ok {
			return ErrNotFound
		}
		logging.Log.Errorf("CANDIDACY: failed to delete candidacy %s: %v", c.ID, err)
		return err
	}
	return nil
}

func (s *DynamoCandidacyStorage) DeleteByElection(ctx context.Context, electionID string) (int, error) {
	list, err := s.GetByElection(ctx, electionID)
	if err != nil {
		return 0, err
	}
	for i, c := range list {
		if err := s.remove(ctx, c, false); err != nil {
			return i, err
		}
	}
	logging.Log.Infof("CANDIDACY: deleted %d candidacies of election %s", len(list), electionID)
	return len(list), nil
}
