package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"spark-go/internal/config"
	"spark-go/internal/kafka"
)

// kafkaDispatcher 通过 Kafka 把实时事件从 API 服务器送到 Chat 服务器。
// Chat 服务器消费 RealtimeTopic 并交给 WebSocket Hub 投递。
type kafkaDispatcher struct {
	producer kafka.MessageProducer
	topic    string
}

// NewKafkaDispatcher creates a Dispatcher backed by the realtime Kafka topic.
func NewKafkaDispatcher(producer kafka.MessageProducer, cfg config.KafkaConfig) Dispatcher {
	return &kafkaDispatcher{producer: producer, topic: cfg.RealtimeTopic}
}

// NotifyUser 发布一个用户范围的事件信封。
func (d *kafkaDispatcher) NotifyUser(ctx context.Context, userID uint, event string, payload interface{}) error {
	return d.publish(ctx, ScopeUser, userID, event, payload)
}

// NotifyMatch 发布一个配对房间范围的事件信封。
func (d *kafkaDispatcher) NotifyMatch(ctx context.Context, matchID uint, event string, payload interface{}) error {
	return d.publish(ctx, ScopeMatch, matchID, event, payload)
}

func (d *kafkaDispatcher) publish(ctx context.Context, scope string, targetID uint, event string, payload interface{}) error {
	env, err := NewEnvelope(scope, targetID, event, payload)
	if err != nil {
		return fmt.Errorf("序列化实时事件负载失败: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化实时事件信封失败: %w", err)
	}

	// key 按 scope-target 分区，保证同一目标的事件有序
	key := []byte(fmt.Sprintf("%s-%d", scope, targetID))
	return d.producer.SendMessage(ctx, d.topic, key, data)
}
