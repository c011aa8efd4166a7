package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// Record kinds used as the partition key of directory items
const (
	kindProject  = "project"
	kindCustomer = "customer"
	kindSchedule = "schedule"
	kindIssue    = "issue"
	kindWorker   = "worker"
)

// dynamodbAPI is the subset of *dynamodb.Client used by the directory
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDirectory serves the business directory from a DynamoDB table.
// Each record is one item: pk = kind, sk = record id, data = JSON document.
type DynamoDirectory struct {
	api   dynamodbAPI
	table string
}

// NewDynamoDirectory creates a DynamoDB-backed directory
func NewDynamoDirectory(api dynamodbAPI, table string) (*DynamoDirectory, error) {
	if api == nil {
		return nil, errors.New("dynamo directory: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamo directory: table name must not be empty")
	}
	return &DynamoDirectory{api: api, table: table}, nil
}

// queryKind loads every item of a kind, following pagination
func (d *DynamoDirectory) queryKind(ctx context.Context, kind string, fn func(raw []byte) error) error {
	var start map[string]types.AttributeValue
	for {
		out, err := d.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.table),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: kind},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return fmt.Errorf("failed to query %s records: %w", kind, err)
		}
		if out == nil {
			return nil
		}
		for _, item := range out.Items {
			v, ok := item["data"].(*types.AttributeValueMemberS)
			if !ok {
				return fmt.Errorf("%s record has no data attribute", kind)
			}
			if err := fn([]byte(v.Value)); err != nil {
				return fmt.Errorf("failed to decode %s record: %w", kind, err)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

// Projects lists all projects
func (d *DynamoDirectory) Projects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := d.queryKind(ctx, kindProject, func(raw []byte) error {
		var p domain.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// Customers lists all customers
func (d *DynamoDirectory) Customers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := d.queryKind(ctx, kindCustomer, func(raw []byte) error {
		var c domain.Customer
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// Schedule lists all schedule entries
func (d *DynamoDirectory) Schedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	var out []domain.ScheduleEntry
	err := d.queryKind(ctx, kindSchedule, func(raw []byte) error {
		var s domain.ScheduleEntry
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// Issues lists all past issues
func (d *DynamoDirectory) Issues(ctx context.Context) ([]domain.PastIssue, error) {
	var out []domain.PastIssue
	err := d.queryKind(ctx, kindIssue, func(raw []byte) error {
		var i domain.PastIssue
		if err := json.Unmarshal(raw, &i); err != nil {
			return err
		}
		out = append(out, i)
		return nil
	})
	return out, err
}

// Workers lists all workers
func (d *DynamoDirectory) Workers(ctx context.Context) ([]domain.Worker, error) {
	var out []domain.Worker
	err := d.queryKind(ctx, kindWorker, func(raw []byte) error {
		var w domain.Worker
		if err := json.Unmarshal(raw, &w); err != nil {
			return err
		}
		out = append(out, w)
		return nil
	})
	return out, err
}

func (d *DynamoDirectory) put(ctx context.Context, kind, id string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]types.AttributeValue{
			"pk":   &types.AttributeValueMemberS{Value: kind},
			"sk":   &types.AttributeValueMemberS{Value: id},
			"data": &types.AttributeValueMemberS{Value: string(raw)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put %s %s: %w", kind, id, err)
	}
	return nil
}

// Replace writes every record of the snapshot. Items are upserted by id;
// records absent from the snapshot are left in place.
func (d *DynamoDirectory) Replace(ctx context.Context, dir *domain.Directory) error {
	for _, p := range dir.Projects {
		key := p.Key
		if key == "" {
			key = p.ProjectID
		}
		if err := d.put(ctx, kindProject, key, p); err != nil {
			return err
		}
	}
	for _, c := range dir.Customers {
		if err := d.put(ctx, kindCustomer, c.CustomerID, c); err != nil {
			return err
		}
	}
	for i, s := range dir.Schedule {
		if err := d.put(ctx, kindSchedule, s.Date+"#"+strconv.Itoa(i), s); err != nil {
			return err
		}
	}
	for i, is := range dir.Issues {
		if err := d.put(ctx, kindIssue, is.IssueType+"#"+strconv.Itoa(i), is); err != nil {
			return err
		}
	}
	for _, w := range dir.Workers {
		if err := d.put(ctx, kindWorker, w.Name, w); err != nil {
			return err
		}
	}
	return nil
}
