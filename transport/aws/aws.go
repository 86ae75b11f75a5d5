// Package aws provides an AWS SNS transport for eventpub. Topics map to SNS
// topic ARNs derived from the account id and region.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the AWS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
}

// Build creates a new SNS publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	awsCfg, err := createAWSConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	logger.Info("Create AWS SNS publisher", watermill.LogFields{
		"accountID":       accountID,
		"region":          region,
		"custom_endpoint": cfg.GetAWSEndpoint() != "",
	})

	topicResolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, watermill.LogFields{
			"accountID": accountID,
			"region":    region,
		})
		return nil, err
	}

	optFns, err := endpointOptions(cfg)
	if err != nil {
		return nil, err
	}

	return PublisherFactory(sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     *awsCfg,
		OptFns:        optFns,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}, logger)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

func createAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	accessKey := cfg.GetAWSAccessKeyID()
	secretKey := cfg.GetAWSSecretAccessKey()

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{"requested_region": region})
		return nil, fmt.Errorf("aws: load config: %w", err)
	}

	// Ensure region is set even if the loader ignores options
	if region != "" {
		awsCfg.Region = region
	}
	return &awsCfg, nil
}

// endpointOptions points the SNS client at AWSEndpoint when one is set.
func endpointOptions(cfg transport.Config) ([]func(*amazonsns.Options), error) {
	endpoint, err := awsEndpointURL(cfg)
	if err != nil || endpoint == nil {
		return nil, err
	}
	return []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *endpoint},
		}),
	}, nil
}

func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	region := cfg.GetAWSRegion()
	if region == "" {
		region = fallbackRegion
	}

	if cfg.GetAWSEndpoint() == "" {
		return accountID, region
	}

	if accountID == "" {
		logger.Info("AWS account ID empty; using LocalStack default", watermill.LogFields{"accountID": localstackAccountID})
		return localstackAccountID, region
	}
	if len(accountID) != awsAccountIDLength {
		logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"accountID": accountID})
		return localstackAccountID, region
	}
	return accountID, region
}

func awsEndpointURL(cfg transport.Config) (*url.URL, error) {
	if cfg.GetAWSEndpoint() == "" {
		return nil, nil
	}

	parsedURL, err := url.Parse(cfg.GetAWSEndpoint())
	if err != nil {
		return nil, fmt.Errorf("aws: parse endpoint: %w", err)
	}
	return parsedURL, nil
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "eventpub",
		}, nil
	})
}
