package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"portfolio-contact/internal/domain"
	"portfolio-contact/internal/usecase"
)

const (
	pkPrefixIP  = "IP#"
	skPrefixMsg = "MSG#"
	// skTimeLayout is fixed width so lexical order on SK matches time order.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores contact messages in a DynamoDB table partitioned by client
// address, so the rate check is a single key-condition query.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newID     func() string
}

var _ usecase.MessageStore = (*Client)(nil)

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now, newID: uuid.NewString}, nil
}

// ipPK returns the partition key for a client address.
func ipPK(ip string) string {
	return pkPrefixIP + ip
}

// msgSK returns the sort key for a message created at ts.
func msgSK(ts time.Time, id string) string {
	return skPrefixMsg + ts.UTC().Format(skTimeLayout) + "#" + id
}

// windowSK is the lower bound for every message created at or after ts.
func windowSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(skTimeLayout)
}

// ListSince returns up to limit messages from ip created at or after since,
// newest first.
func (c *Client) ListSince(ctx context.Context, ip string, since time.Time, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK >= :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: ipPK(ip)},
			":from": &types.AttributeValueMemberS{Value: windowSK(since)},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListSince query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListSince unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// InsertMessage writes a new message, assigning its id and creation time.
func (c *Client) InsertMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error) {
	if msg.IP == "" {
		return domain.Message{}, errors.New("repository: InsertMessage: ip is required")
	}

	row := domain.Message{
		ID:        c.newID(),
		CreatedAt: c.now().UTC(),
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
		IP:        msg.IP,
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                messageItem(row),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.Message{}, &WriteError{Op: "InsertMessage", Err: err}
	}
	return row, nil
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Message{}, err
	}
	createdRaw, err := strAttr(item, "created_at")
	if err != nil {
		return domain.Message{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: parse attribute %q: %w", "created_at", err)
	}
	ip, err := strAttr(item, "ip")
	if err != nil {
		return domain.Message{}, err
	}
	// Body fields are not needed for the rate check; tolerate projections.
	name, _ := strAttr(item, "name")
	email, _ := strAttr(item, "email")
	subject, _ := strAttr(item, "subject")
	message, _ := strAttr(item, "message")

	return domain.Message{
		ID:        id,
		CreatedAt: created,
		Name:      name,
		Email:     email,
		Subject:   subject,
		Message:   message,
		IP:        ip,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: ipPK(msg.IP)},
		"SK":         &types.AttributeValueMemberS{Value: msgSK(msg.CreatedAt, msg.ID)},
		"id":         &types.AttributeValueMemberS{Value: msg.ID},
		"created_at": &types.AttributeValueMemberS{Value: msg.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"name":       &types.AttributeValueMemberS{Value: msg.Name},
		"email":      &types.AttributeValueMemberS{Value: msg.Email},
		"subject":    &types.AttributeValueMemberS{Value: msg.Subject},
		"message":    &types.AttributeValueMemberS{Value: msg.Message},
		"ip":         &types.AttributeValueMemberS{Value: msg.IP},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
