package kafka

import (
	"PetCare/internal/api/config"

	"github.com/IBM/sarama"
)

// NewSaramaConfig 生产者基础配置，认证按需开启
func NewSaramaConfig(cfg *config.KafkaConfig) *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V2_8_0_0

	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Return.Successes = true
	c.Producer.Partitioner = sarama.NewHashPartitioner

	if cfg.Sasl.Enable {
		c.Net.SASL.Enable = true
		c.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		c.Net.SASL.User = cfg.Sasl.Username
		c.Net.SASL.Password = cfg.Sasl.Password
		c.Net.SASL.Handshake = true
	}

	return c
}
