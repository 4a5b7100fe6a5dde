// Package dynamo persists sessions and the outbox ledger in DynamoDB. A
// state transition and its events go through one TransactWriteItems call
// spanning both tables, which is what makes the outbox append co-atomic
// with the transition.
//
// Layout:
//
//	sessions table: PK=USER#<identity>  SK=SESSION  state, data, updated_at
//	outbox table:   PK=EVENT#<id>       SK=EVENT    event fields, sparse "unpublished" attr
//
// Unpublished events are found through a sparse GSI keyed on the
// "unpublished" attribute, sorted by created_at. MarkPublished removes the
// attribute so the event drops out of the index.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

const (
	skSession = "SESSION"
	skEvent   = "EVENT"

	unpublishedIndex = "unpublished-index"
	unpublishedValue = "1"
)

// dynamodbAPI is the minimal DynamoDB surface the Store needs. Defined
// here so tests can substitute a fake.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements conversation.Store and outbox.Store over a sessions
// table and an outbox table. Commit spans both in one transaction.
type Store struct {
	api           dynamodbAPI
	sessionsTable string
	outboxTable   string
}

// New builds a Store over the given client and tables.
func New(api dynamodbAPI, sessionsTable, outboxTable string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(sessionsTable) == "" || strings.TrimSpace(outboxTable) == "" {
		return nil, errors.New("dynamo: table names must not be empty")
	}

	return &Store{api: api, sessionsTable: sessionsTable, outboxTable: outboxTable}, nil
}

func userPK(identity string) string {
	return "USER#" + identity
}

func eventPK(id string) string {
	return "EVENT#" + id
}

// Load reads the session item for identity. A missing item means a first
// contact: StateStart with a fresh session.
func (s *Store) Load(ctx context.Context, identity string) (conversation.State, session.Data, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.sessionsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skSession},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", session.Data{}, fmt.Errorf("loading session: %w", err)
	}

	if out.Item == nil {
		return conversation.StateStart, session.New(), nil
	}

	state := conversation.State(stringAttr(out.Item, "state"))
	if !state.Valid() {
		return "", session.Data{}, fmt.Errorf("stored state %q is not a known state", state)
	}

	var data session.Data
	if raw := stringAttr(out.Item, "data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return "", session.Data{}, fmt.Errorf("decoding session data: %w", err)
		}
	} else {
		data = session.New()
	}

	return state, data, nil
}

// Commit writes the session and appends the events in one transaction.
func (s *Store) Commit(ctx context.Context, identity string, state conversation.State, data session.Data, events []outbox.Event) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(s.sessionsTable),
			Item: map[string]types.AttributeValue{
				"PK":         &types.AttributeValueMemberS{Value: userPK(identity)},
				"SK":         &types.AttributeValueMemberS{Value: skSession},
				"state":      &types.AttributeValueMemberS{Value: state.String()},
				"data":       &types.AttributeValueMemberS{Value: string(encoded)},
				"updated_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			},
		},
	}}

	for _, event := range events {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.outboxTable),
				Item: map[string]types.AttributeValue{
					"PK":             &types.AttributeValueMemberS{Value: eventPK(event.ID)},
					"SK":             &types.AttributeValueMemberS{Value: skEvent},
					"id":             &types.AttributeValueMemberS{Value: event.ID},
					"aggregate_type": &types.AttributeValueMemberS{Value: event.AggregateType},
					"aggregate_id":   &types.AttributeValueMemberS{Value: event.AggregateID},
					"event_type":     &types.AttributeValueMemberS{Value: event.EventType},
					"payload":        &types.AttributeValueMemberS{Value: string(event.Payload)},
					"created_at":     &types.AttributeValueMemberS{Value: event.CreatedAt.Format(time.RFC3339Nano)},
					"unpublished":    &types.AttributeValueMemberS{Value: unpublishedValue},
				},
			},
		})
	}

	if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		return fmt.Errorf("committing transition: %w", err)
	}

	return nil
}

// Clear deletes the session item for identity.
func (s *Store) Clear(ctx context.Context, identity string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.sessionsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skSession},
		},
	}); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	return nil
}

// FetchUnpublished queries the sparse index for events that have not been
// delivered yet, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Event, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.outboxTable),
		IndexName:              aws.String(unpublishedIndex),
		KeyConditionExpression: aws.String("unpublished = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: unpublishedValue},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying unpublished events: %w", err)
	}

	events := make([]outbox.Event, 0, len(out.Items))
	for _, item := range out.Items {
		event, err := eventFromItem(item)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

// MarkPublished stamps the event and removes it from the unpublished
// index. Re-marking an already published event keeps the original stamp.
func (s *Store) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if _, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.outboxTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skEvent},
		},
		UpdateExpression: aws.String("SET published_at = if_not_exists(published_at, :at) REMOVE unpublished"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		},
	}); err != nil {
		return fmt.Errorf("marking event published: %w", err)
	}

	return nil
}

func eventFromItem(item map[string]types.AttributeValue) (outbox.Event, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, stringAttr(item, "created_at"))
	if err != nil {
		return outbox.Event{}, fmt.Errorf("parsing event created_at: %w", err)
	}

	return outbox.Event{
		ID:            stringAttr(item, "id"),
		AggregateType: stringAttr(item, "aggregate_type"),
		AggregateID:   stringAttr(item, "aggregate_id"),
		EventType:     stringAttr(item, "event_type"),
		Payload:       json.RawMessage(stringAttr(item, "payload")),
		CreatedAt:     createdAt,
	}, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
