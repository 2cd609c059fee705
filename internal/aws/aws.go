package awsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// Clients hands out the AWS clients the portal needs. The SDK configuration is loaded on
// first use and shared, so a deployment that reads its directory token from the environment
// and only logs mail never touches AWS.
type Clients struct {
	Region string

	once sync.Once
	cfg  aws.Config
	err  error
}

func (c *Clients) config(ctx context.Context) (aws.Config, error) {
	c.once.Do(func() {
		c.cfg, c.err = config.LoadDefaultConfig(ctx, config.WithRegion(c.Region))
		if c.err != nil {
			c.err = fmt.Errorf("unable to load SDK config: %w", c.err)
		}
	})
	return c.cfg, c.err
}

// SecretsManager returns a client for reading the directory admin token.
func (c *Clients) SecretsManager(ctx context.Context) (*secretsmanager.Client, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// SES returns a client for invitation and password reset mail.
func (c *Clients) SES(ctx context.Context) (*sesv2.Client, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return nil, err
	}
	return sesv2.NewFromConfig(cfg), nil
}
