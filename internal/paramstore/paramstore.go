// Package paramstore resolves secrets kept in AWS Systems Manager Parameter
// Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the slice of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Open builds a client from the default AWS credential chain.
func Open(ctx context.Context) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("paramstore: load aws config: %w", err)
	}
	return New(ssm.NewFromConfig(cfg))
}

// Get returns the decrypted value of a parameter.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: ptr(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: %q has no value", name)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}

// Resolve prefers a literal value and falls back to the named parameter.
func Resolve(ctx context.Context, literal, name string, open func(context.Context) (*Client, error)) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("paramstore: neither a value nor a parameter name is configured")
	}
	c, err := open(ctx)
	if err != nil {
		return "", err
	}
	return c.Get(ctx, name)
}

func ptr[T any](v T) *T { return &v }
