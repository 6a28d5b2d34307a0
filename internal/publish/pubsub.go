// Package publish announces persisted records to downstream consumers.
package publish

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSub publishes record ids to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub creates a Pub/Sub client and verifies the topic exists. It
// authenticates using Application Default Credentials.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to check for topic existence: %w", err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Publish sends a message containing the record id to the topic. The send is
// asynchronous; the client batches and retries in the background, and a
// goroutine waits for the server acknowledgement so failures are not dropped
// silently. The wait outlives the caller's context cancellation.
func (p *PubSub) Publish(ctx context.Context, recordID string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: []byte(recordID)})
	go p.confirm(context.WithoutCancel(ctx), recordID, result)
	return nil
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

func (p *PubSub) confirm(ctx context.Context, recordID string, result publishResult) {
	serverID, err := result.Get(ctx)
	if err != nil {
		p.logger.Error("pubsub publish failed",
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("pubsub publish acknowledged",
		zap.String("record_id", recordID),
		zap.String("server_id", serverID),
	)
}

// Close stops the topic's publisher and closes the underlying client connection.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
