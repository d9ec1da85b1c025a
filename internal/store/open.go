package store

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Options selects and configures a ledger backend.
type Options struct {
	Backend     string // csv, postgres, sqlite, dynamodb
	CSVPath     string
	DatabaseURL string
	SQLitePath  string
	DynamoTable string
	Location    *time.Location
}

func Open(ctx context.Context, opts Options) (Ledger, error) {
	switch opts.Backend {
	case "", "csv":
		return NewCSVLedger(opts.CSVPath, opts.Location), nil
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres ledger requires DATABASE_URL")
		}
		return NewPostgres(ctx, opts.DatabaseURL, opts.Location)
	case "sqlite":
		return NewSQLite(opts.SQLitePath, opts.Location)
	case "dynamodb":
		if opts.DynamoTable == "" {
			return nil, fmt.Errorf("dynamodb ledger requires DYNAMODB_TABLE")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewDynamo(dynamodb.NewFromConfig(awsCfg), opts.DynamoTable, opts.Location), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", opts.Backend)
	}
}
