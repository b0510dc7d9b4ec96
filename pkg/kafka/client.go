// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"visamate-go/internal/config"
	"visamate-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。Brokers 为空时不初始化，
// 告警推送功能整体关闭。
func InitProducer(cfg config.KafkaConfig) {
	if cfg.Brokers == "" {
		log.Info("Kafka brokers 未配置，告警推送功能已关闭")
		return
	}
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// Enabled 报告生产者是否可用。
func Enabled() bool {
	return producer != nil
}

// ProduceAlertEvent 将一条内容变更告警事件发送到 Kafka。
func ProduceAlertEvent(ctx context.Context, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx, kafka.Message{Value: eventBytes})
}

// Close 关闭生产者连接。
func Close() {
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
}
