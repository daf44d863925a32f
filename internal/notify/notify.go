// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package notify announces finished runs.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	// SQSQueueURL enables notification when set.
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
	// SQSEndpoint overrides the SQS endpoint, eg for LocalStack.
	SQSEndpoint string `mapstructure:"sqs_endpoint"`
}

func DefaultConfig() Config {
	return Config{}
}

// Enabled reports whether a queue is configured.
func (c Config) Enabled() bool {
	return c.SQSQueueURL != ""
}

// Notifier sends a run summary somewhere.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

// SendMessageAPI is the part of the SQS client the notifier uses.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier posts JSON payloads to one queue.
type SQSNotifier struct {
	client   SendMessageAPI
	queueURL string
	tracer   trace.Tracer
}

var _ Notifier = (*SQSNotifier)(nil)

func NewSQSNotifier(client SendMessageAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		tracer:   otel.Tracer("github.com/cardinalhq/songlake/internal/notify"),
	}
}

// Notify marshals payload as the message body and tags the message with the
// event name.
func (n *SQSNotifier) Notify(ctx context.Context, event string, payload any) error {
	ctx, span := n.tracer.Start(ctx, "notify.SQS", trace.WithAttributes(
		attribute.String("event", event),
	))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", event, err)
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event),
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("send %s notification: %w", event, err)
	}

	slog.Info("Sent run notification",
		slog.String("event", event),
		slog.String("messageID", aws.ToString(out.MessageId)))
	return nil
}
