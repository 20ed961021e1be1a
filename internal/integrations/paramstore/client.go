package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// tokenPayload is the JSON shape some secrets are stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// Client wraps an AWS SSM API for secret retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Lookup returns the decrypted value of an optional parameter. A parameter
// that does not exist is reported as ok == false without an error.
func (c *Client) Lookup(ctx context.Context, name string) (string, bool, error) {
	if c.api == nil {
		return "", false, errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", false, errors.New("paramstore: parameter missing value")
	}
	return secretValue(*out.Parameter.Value), true, nil
}

// secretValue unwraps {"token":"..."} payloads and returns anything else
// unchanged.
func secretValue(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(trimmed), &tp); err != nil || tp.Token == "" {
		return trimmed
	}
	return tp.Token
}
