package kafka

import (
	"PetCare/internal/api/config"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Producer 离线通知投递。相对消息主链路是旁路，失败由上层策略兜底。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Producer{producer: producer, topic: cfg.NotificationTopic}, nil
}

// Send 序列化并发送一条通知事件，key 取接收者 ID 保证同一用户的事件有序
func (p *Producer) Send(key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(jsonValue),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
