package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
)

// KafkaPublisher writes events to a topic keyed by order id, so every event
// of one order lands on the same partition in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// producerConfig bounds every network step by publishTimeout, since
// SendMessage takes no context.
func producerConfig() *sarama.Config {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Timeout = publishTimeout
	conf.Producer.Retry.Max = 1
	conf.Net.DialTimeout = publishTimeout
	conf.Net.ReadTimeout = publishTimeout
	conf.Net.WriteTimeout = publishTimeout
	conf.Metadata.Timeout = publishTimeout
	return conf
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("notify.NewKafkaPublisher: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(body),
	}
	if ev.OrderID != "" {
		msg.Key = sarama.StringEncoder(ev.OrderID)
	}
	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
