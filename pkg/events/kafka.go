package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// messageWriter is the part of kafka.Writer we use
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a kafka topic, keyed by job id so all events for
// one job land on one partition in order.
type Kafka struct {
	writer messageWriter
}

// NewKafka returns a publisher writing to the brokers in opts.URL
func NewKafka(opts *Options) (*Kafka, error) {
	brokers := opts.brokers()
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w no kafka brokers in %s", errors.ErrInvalidArg, opts.URL)
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

func (k *Kafka) Notify(ctx context.Context, j *structs.Job) error {
	msg, err := toMessage(j)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func toMessage(j *structs.Job) (kafka.Message, error) {
	data, err := encode(j)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(j.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(j.State)},
		},
	}, nil
}
