package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"BetSync/internal/config"
	"BetSync/internal/interfaces"
	"BetSync/internal/model"
)

// messageWriter kafka.Writer 的最小子集，测试时替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 把盈亏变更写入 kafka，key 为 user_id，同一用户的事件落在同一分区保持顺序
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

func NewKafkaPublisher(cfg *config.KafkaConfig, logger *logrus.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.Topic, logger: logger}
}

func (p *KafkaPublisher) PublishSettlement(ctx context.Context, events ...model.SettlementEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("序列化结算事件失败: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.UserID),
			Value: value,
			Time:  e.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("推送结算事件失败(topic=%s): %w", p.topic, err)
	}
	p.logger.WithFields(logrus.Fields{"topic": p.topic, "count": len(msgs)}).Debug("已推送结算事件")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher 未配置 kafka 时使用
type NoopPublisher struct{}

func (NoopPublisher) PublishSettlement(context.Context, ...model.SettlementEvent) error { return nil }
func (NoopPublisher) Close() error                                                    { return nil }

// New brokers 为空时返回 NoopPublisher
func New(cfg *config.KafkaConfig, logger *logrus.Logger) interfaces.SettlementPublisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("未配置 kafka brokers，结算事件不推送")
		return NoopPublisher{}
	}
	logger.WithFields(logrus.Fields{"brokers": cfg.Brokers, "topic": cfg.Topic}).Info("结算事件推送已启用")
	return NewKafkaPublisher(cfg, logger)
}
