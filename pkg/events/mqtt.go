package events

import (
	"context"

	"github.com/fedbench/fedsim/pkg/mqttps"
)

type MQTTEmitter struct {
	pub    mqttps.Publisher
	topics *TopicBuilder
}

func NewMQTTEmitter(pub mqttps.Publisher, topics *TopicBuilder) Emitter {
	return &MQTTEmitter{
		pub:    pub,
		topics: topics,
	}
}

func (e *MQTTEmitter) EmitRoundStarted(ctx context.Context, event RoundEvent) error {
	return e.pub.Publish(ctx, e.topics.RoundStartedTopic(), event)
}

func (e *MQTTEmitter) EmitRoundCompleted(ctx context.Context, event RoundEvent) error {
	return e.pub.Publish(ctx, e.topics.RoundCompletedTopic(), event)
}

func (e *MQTTEmitter) EmitRoundFailed(ctx context.Context, event RoundEvent) error {
	return e.pub.Publish(ctx, e.topics.RoundFailedTopic(), event)
}

func (e *MQTTEmitter) EmitRunCompleted(ctx context.Context, event RunEvent) error {
	return e.pub.Publish(ctx, e.topics.RunCompletedTopic(), event)
}
