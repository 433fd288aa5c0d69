package adapter

import (
	"fmt"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const (
	TransportGoChannel = "gochannel"
	TransportKafka     = "kafka"
	TransportRedis     = "redis"
)

type PublisherConfig struct {
	Transport    string
	ClientID     string
	KafkaBrokers []string
	RedisClient  redis.UniversalClient
}

// NewPublisher builds the Watermill publisher for the configured transport.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	switch strings.ToLower(cfg.Transport) {
	case TransportGoChannel:
		return gochannel.NewGoChannel(gochannel.Config{}, logger), nil

	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka publisher: no brokers configured")
		}
		saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
		saramaConfig.ClientID = cfg.ClientID
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll

		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:               cfg.KafkaBrokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		return publisher, nil

	case TransportRedis:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("redis stream publisher: no client configured")
		}
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: cfg.RedisClient,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis stream publisher: %w", err)
		}
		return publisher, nil
	}

	return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
}
