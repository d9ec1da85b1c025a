package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

// dynamoAPI is the subset of the DynamoDB client used by the ledger.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	dynamoDayIndex = "ByDay"
	// Fixed width so sort keys order lexically by time.
	dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Dynamo stores one item per record. PK groups by product, the ByDay GSI
// groups by calendar day in the ledger's location.
type Dynamo struct {
	api   dynamoAPI
	table string
	loc   *time.Location
}

func NewDynamo(api dynamoAPI, table string, loc *time.Location) *Dynamo {
	if loc == nil {
		loc = time.Local
	}
	return &Dynamo{api: api, table: table, loc: loc}
}

func (d *Dynamo) Close() {}

func (d *Dynamo) Append(ctx context.Context, rec ledger.Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := rec.ID
	if id == "" {
		id = ledger.UnknownID
	}
	sk := "TS#" + ts.UTC().Format(dynamoTimeLayout) + "#" + uuid.NewString()[:8]

	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: "PRODUCT#" + id},
		"SK":          &types.AttributeValueMemberS{Value: sk},
		"DAY":         &types.AttributeValueMemberS{Value: ts.In(d.loc).Format("2006-01-02")},
		"ProductID":   &types.AttributeValueMemberS{Value: id},
		"Title":       &types.AttributeValueMemberS{Value: rec.Title},
		"OldPrice":    &types.AttributeValueMemberN{Value: rec.OldPrice.StringFixed(2)},
		"NewPrice":    &types.AttributeValueMemberN{Value: rec.NewPrice.StringFixed(2)},
		"Link":        &types.AttributeValueMemberS{Value: rec.Link},
		"ArtifactRef": &types.AttributeValueMemberS{Value: rec.ArtifactRef},
		"Kind":        &types.AttributeValueMemberS{Value: string(rec.Kind)},
		"RecordedAt":  &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
	}
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return failure.New(failure.CodePersistence, "dynamo.append", err)
	}
	return nil
}

func (d *Dynamo) LastForID(ctx context.Context, id string) (ledger.Record, bool, error) {
	out, err := d.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "PRODUCT#" + id},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return ledger.Record{}, false, failure.New(failure.CodePersistence, "dynamo.last", err)
	}
	if len(out.Items) == 0 {
		return ledger.Record{}, false, nil
	}
	rec, err := d.decode(out.Items[0])
	if err != nil {
		return ledger.Record{}, false, failure.New(failure.CodePersistence, "dynamo.last", err)
	}
	return rec, true, nil
}

func (d *Dynamo) RecordsOn(ctx context.Context, day time.Time) ([]ledger.Record, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		IndexName:              aws.String(dynamoDayIndex),
		KeyConditionExpression: aws.String("#day = :day"),
		ExpressionAttributeNames: map[string]string{
			"#day": "DAY",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":day": &types.AttributeValueMemberS{Value: day.In(d.loc).Format("2006-01-02")},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out []ledger.Record
	for {
		page, err := d.api.Query(ctx, in)
		if err != nil {
			return nil, failure.New(failure.CodePersistence, "dynamo.records", err)
		}
		for _, item := range page.Items {
			rec, err := d.decode(item)
			if err != nil {
				return nil, failure.New(failure.CodePersistence, "dynamo.records", err)
			}
			out = append(out, rec)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return out, nil
}

func (d *Dynamo) decode(item map[string]types.AttributeValue) (ledger.Record, error) {
	str := func(k string) string {
		if v, ok := item[k].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}
	num := func(k string) decimal.Decimal {
		if v, ok := item[k].(*types.AttributeValueMemberN); ok {
			n, err := decimal.NewFromString(v.Value)
			if err == nil {
				return n
			}
		}
		return decimal.Zero
	}

	ts, err := time.Parse(time.RFC3339Nano, str("RecordedAt"))
	if err != nil {
		return ledger.Record{}, fmt.Errorf("parse RecordedAt: %w", err)
	}
	return ledger.Record{
		ID:          str("ProductID"),
		Title:       str("Title"),
		OldPrice:    num("OldPrice"),
		NewPrice:    num("NewPrice"),
		Link:        str("Link"),
		ArtifactRef: str("ArtifactRef"),
		Kind:        ledger.Kind(str("Kind")),
		Timestamp:   ts.In(d.loc),
	}, nil
}
