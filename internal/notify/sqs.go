package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client used to publish notifications.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS publishes notifications as JSON messages on a queue.
type SQS struct {
	client   SQSAPI
	queueURL string
	logger   *zap.Logger
}

// NewSQS creates an SQS notifier.
func NewSQS(client SQSAPI, queueURL string, logger *zap.Logger) *SQS {
	return &SQS{client: client, queueURL: queueURL, logger: logger}
}

func (s *SQS) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"RunID": {
				StringValue: aws.String(n.RunID.String()),
				DataType:    aws.String("String"),
			},
			"Verdict": {
				StringValue: aws.String(n.Verdict),
				DataType:    aws.String("String"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	s.logger.Info("notification queued",
		zap.String("run_id", n.RunID.String()),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
