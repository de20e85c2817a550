package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/infrastructure/mq"
	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/internal/service"

	"github.com/IBM/sarama"
)

// SettlementConsumer 结算消费者
//
// 订阅"确认收货"主题，驱动订单结算。处理失败的消息转入死信主题
// 人工介入，不做原地重试，避免一条坏消息堵死整个分区
type SettlementConsumer struct {
	cfg               *config.Config
	consumerGroup     sarama.ConsumerGroup
	settlementService *service.SettlementService
}

func NewSettlementConsumer(cfg *config.Config, settlementService *service.SettlementService) (*SettlementConsumer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	kafkaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, kafkaConfig)
	if err != nil {
		return nil, err
	}

	return &SettlementConsumer{
		cfg:               cfg,
		consumerGroup:     group,
		settlementService: settlementService,
	}, nil
}

// Start 启动消费循环，阻塞直到 ctx 取消
func (c *SettlementConsumer) Start(ctx context.Context) {
	topics := []string{c.cfg.Kafka.Topic.OrderConfirmed}
	log.Printf("[SettlementConsumer] 启动，订阅主题: %v, 消费组: %s", topics, c.cfg.Kafka.GroupID)

	for {
		// Consume 在发生 rebalance 后返回，需要循环重新加入消费组
		if err := c.consumerGroup.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Printf("[SettlementConsumer] 消费异常: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Close 关闭消费组
func (c *SettlementConsumer) Close() error {
	return c.consumerGroup.Close()
}

// Setup 实现 sarama.ConsumerGroupHandler
func (c *SettlementConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup 实现 sarama.ConsumerGroupHandler
func (c *SettlementConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 逐条处理分区消息
// 无论成功还是转死信，最后都要 MarkMessage 推进位点
func (c *SettlementConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *SettlementConsumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	var msg model.OrderConfirmedMessage
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		// 消息体损坏，重试没有意义，直接进死信
		log.Printf("[SettlementConsumer] 消息反序列化失败，转入死信: %v", err)
		c.sendToDLQ(message)
		return
	}

	if err := c.settlementService.HandleOrderConfirmed(ctx, &msg); err != nil {
		log.Printf("[SettlementConsumer] 结算失败，转入死信: orderNo=%s, err=%v", msg.OrderNo, err)
		c.sendToDLQ(message)
		return
	}
}

func (c *SettlementConsumer) sendToDLQ(message *sarama.ConsumerMessage) {
	if err := mq.SendMessage(c.cfg.Kafka.Topic.OrderConfirmedDLQ,
		string(message.Key), string(message.Value)); err != nil {
		// 死信也发不出去只能记日志，位点仍然推进，靠日志排查补偿
		log.Printf("[SettlementConsumer] 写入死信主题失败: %v", err)
	}
}
