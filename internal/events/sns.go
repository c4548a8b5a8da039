package events

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/pkg/errors"
)

// SNSPublisher is the subset of the SNS client used by SNSSink.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink forwards events to an SNS topic for external observers.
type SNSSink struct {
	client   SNSPublisher
	topicARN string
}

func NewSNSSink(client SNSPublisher, topicARN string) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN}
}

// NewSNSSinkFromEnv builds the SNS client from the default AWS credential chain.
func NewSNSSinkFromEnv(ctx context.Context, region, topicARN string) (*SNSSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	return NewSNSSink(sns.NewFromConfig(cfg), topicARN), nil
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Deliver(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.Type)),
			},
			"component": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Component),
			},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s to sns", evt.Type)
	}
	return nil
}
