package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transfer-core/pkg/logger"
)

// RedisProducer 基于 Redis Streams 的生产者
type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// Publish XADD <topic> * payload <json> key <key>
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"payload": payload,
			"key":     key,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// RedisConsumer 基于消费者组的 Redis Streams 消费者
type RedisConsumer struct {
	client *redis.Client
	group  string
	name   string
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{client: client, group: group, name: name}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// 1. 创建 Consumer Group (如果不存在)
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("创建消费者组失败: %w", err)
	}
	logger.Info("redis stream subscribed", zap.String("topic", topic), zap.String("group", c.group))

	for {
		if ctx.Err() != nil {
			return nil
		}

		// 2. 阻塞读取消息
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    2 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("redis stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		// 3. 处理消息
		for _, stream := range streams {
			for _, x := range stream.Messages {
				payload, ok := x.Values["payload"].(string)
				if !ok {
					logger.Warn("redis stream message without payload", zap.String("id", x.ID))
					c.ack(ctx, topic, x.ID)
					continue
				}
				key, _ := x.Values["key"].(string)

				if err := handler(&Message{ID: x.ID, Topic: topic, Key: key, Payload: []byte(payload)}); err != nil {
					logger.Error("redis stream handler failed", zap.String("id", x.ID), zap.Error(err))
					continue
				}
				c.ack(ctx, topic, x.ID)
			}
		}
	}
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(ctx, topic, c.group, id).Err(); err != nil {
		logger.Warn("redis stream ack failed", zap.String("id", id), zap.Error(err))
	}
}

// Close client 由调用方持有，这里不关闭
func (c *RedisConsumer) Close() error {
	return nil
}
