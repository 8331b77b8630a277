package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Lifecycle topics published by the payment and registration services.
const (
	TopicPaymentCreated      = "cursos.payment.created"
	TopicPaymentCharged      = "cursos.payment.charged"
	TopicRegistrationCreated = "cursos.registration.created"
	TopicRegistrationDeleted = "cursos.registration.deleted"
)

func Topics() []string {
	return []string{
		TopicPaymentCreated,
		TopicPaymentCharged,
		TopicRegistrationCreated,
		TopicRegistrationDeleted,
	}
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes a single keyed message to topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishJSON marshals payload and publishes it to topic.
func (p *Producer) PublishJSON(topic string, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(topic, key, value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// EnsureTopicsExist creates the given topics if they don't already exist.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		// Already-exists errors are fine; keep creating the rest.
		_ = controllerConn.CreateTopics(topicConfigs...)
	}

	time.Sleep(1 * time.Second)
	return nil
}
