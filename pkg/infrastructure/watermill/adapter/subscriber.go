package adapter

import (
	"fmt"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

type SubscriberConfig struct {
	Transport     string
	ClientID      string
	ConsumerGroup string
	KafkaBrokers  []string
	RedisClient   redis.UniversalClient
}

// NewSubscriber builds a Watermill subscriber for a broker transport. GoChannel is not
// supported here: its subscribers must share the publisher instance.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	switch strings.ToLower(cfg.Transport) {
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka subscriber: no brokers configured")
		}
		saramaConfig := kafka.DefaultSaramaSubscriberConfig()
		saramaConfig.ClientID = cfg.ClientID
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
		saramaConfig.Consumer.Return.Errors = true

		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         cfg.ConsumerGroup,
			OverwriteSaramaConfig: saramaConfig,
			InitializeTopicDetails: &sarama.TopicDetail{
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka subscriber: %w", err)
		}
		return subscriber, nil

	case TransportRedis:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("redis stream subscriber: no client configured")
		}
		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        cfg.RedisClient,
			ConsumerGroup: cfg.ConsumerGroup,
			Consumer:      cfg.ClientID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis stream subscriber: %w", err)
		}
		return subscriber, nil
	}

	return nil, fmt.Errorf("event transport %q has no standalone subscriber", cfg.Transport)
}
