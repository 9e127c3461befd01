package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/commitlog/internal/runtime/config"
	"github.com/drblury/commitlog/transport"
	"github.com/drblury/commitlog/transport/transporttest"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps, ok := transport.Lookup(TransportName)
	require.True(t, ok)
	assert.Equal(t, "aws", caps.Name)
	assert.True(t, caps.Durable)
	assert.True(t, caps.SupportsTracing)
	assert.Equal(t, transport.AWSCapabilities, Capabilities())
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "commitlog-jobs", TopicName("commitlog.jobs"))
	assert.Equal(t, "a_b-c", TopicName("a_b-c"))
	assert.Equal(t, "x-y-z", TopicName("x/y z"))
	assert.Len(t, TopicName(string(make([]byte, 300))), maxTopicNameLength)
}

// stubAWS replaces every factory for the duration of the test.
func stubAWS(t *testing.T) {
	t.Helper()
	originalConfigLoader := DefaultConfigLoader
	originalTopicResolver := TopicResolverFactory
	originalPubFactory := PublisherFactory
	originalSubFactory := SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalConfigLoader
		TopicResolverFactory = originalTopicResolver
		PublisherFactory = originalPubFactory
		SubscriberFactory = originalSubFactory
	})

	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		return &sns.GenerateArnTopicResolver{}, nil
	}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return &transporttest.Subscriber{}, nil
	}
}

func TestBuild(t *testing.T) {
	t.Run("publishes under sanitized topic names", func(t *testing.T) {
		stubAWS(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}

		cfg := config.Events{AWSRegion: "us-east-1", AWSAccountID: "123456789012"}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
		require.NoError(t, err)

		require.NoError(t, tr.Publisher.Publish("commitlog.jobs", message.NewMessage("1", []byte("x"))))
		assert.Len(t, pub.Messages("commitlog-jobs"), 1)
		assert.Empty(t, pub.Messages("commitlog.jobs"))

		_, err = tr.Subscriber.Subscribe(context.Background(), "commitlog.jobs")
		require.NoError(t, err)
		require.NoError(t, tr.Close())
		assert.True(t, pub.Closed())
	})

	t.Run("applies endpoint and resolves localstack account", func(t *testing.T) {
		stubAWS(t)
		var gotAccount, gotRegion string
		TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
			gotAccount, gotRegion = accountID, region
			return &sns.GenerateArnTopicResolver{}, nil
		}
		var pubCfg sns.PublisherConfig
		var subCfg sqs.SubscriberConfig
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			pubCfg = cfg
			return &transporttest.Publisher{}, nil
		}
		SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = sqsCfg
			return &transporttest.Subscriber{}, nil
		}

		cfg := config.Events{AWSRegion: "eu-west-1", AWSEndpoint: "http://localhost:4566"}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})
		require.NoError(t, err)

		assert.Equal(t, localstackAccountID, gotAccount)
		assert.Equal(t, "eu-west-1", gotRegion)
		require.NotNil(t, pubCfg.AWSConfig.BaseEndpoint)
		assert.Equal(t, "http://localhost:4566", *pubCfg.AWSConfig.BaseEndpoint)
		assert.Len(t, pubCfg.OptFns, 1)
		assert.Len(t, subCfg.OptFns, 1)
	})

	t.Run("returns error when config loader fails", func(t *testing.T) {
		stubAWS(t)
		DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("config error")
		}

		_, err := Build(context.Background(), config.Events{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("returns error when topic resolver fails", func(t *testing.T) {
		stubAWS(t)
		TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
			return nil, errors.New("resolver error")
		}

		_, err := Build(context.Background(), config.Events{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "resolver error")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		stubAWS(t)
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), config.Events{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("closes publisher when subscriber factory fails", func(t *testing.T) {
		stubAWS(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), config.Events{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.Closed())
	})
}

func TestResolveAccountAndRegion(t *testing.T) {
	t.Run("uses config values", func(t *testing.T) {
		cfg := config.Events{AWSAccountID: "123456789012", AWSRegion: "us-west-2"}
		accountID, region := resolveAccountAndRegion(cfg, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, "123456789012", accountID)
		assert.Equal(t, "us-west-2", region)
	})

	t.Run("trims quotes from account id", func(t *testing.T) {
		cfg := config.Events{AWSAccountID: `"123456789012"`}
		accountID, region := resolveAccountAndRegion(cfg, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, "123456789012", accountID)
		assert.Equal(t, "us-east-1", region)
	})

	t.Run("falls back to localstack account for bad ids", func(t *testing.T) {
		cfg := config.Events{AWSAccountID: "42", AWSEndpoint: "http://localhost:4566"}
		accountID, _ := resolveAccountAndRegion(cfg, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, localstackAccountID, accountID)
	})

	t.Run("returns empty values for nil config", func(t *testing.T) {
		accountID, region := resolveAccountAndRegion(nil, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, "", accountID)
		assert.Equal(t, "us-east-1", region)
	})
}

func TestAwsEndpointURL(t *testing.T) {
	u, err := awsEndpointURL(nil)
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = awsEndpointURL(config.Events{})
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = awsEndpointURL(config.Events{AWSEndpoint: "http://localhost:4566"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", u.Host)

	_, err = awsEndpointURL(config.Events{AWSEndpoint: "http://[bad"})
	assert.Error(t, err)
}
