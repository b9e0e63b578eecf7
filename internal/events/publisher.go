// Package events publishes attempt notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"designsense-go/internal/config"
	"designsense-go/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventTypeAttemptRecorded is the type of every message on the attempts topic.
const EventTypeAttemptRecorded = "attempt.recorded"

const queueSize = 256

// AttemptRecorded is the message body.
type AttemptRecorded struct {
	Type                string      `json:"type"`
	AttemptID           string      `json:"attemptId"`
	ApplicantEmail      string      `json:"applicantEmail"`
	ApplicantName       string      `json:"applicantName"`
	AttemptNumber       int         `json:"attemptNumber"`
	SessionID           string      `json:"sessionId"`
	OverallCloseness    float64     `json:"overallCloseness"`
	OverallClosenessPct float64     `json:"overallClosenessPct"`
	Band                models.Band `json:"band"`
	SubmittedAt         time.Time   `json:"submittedAt"`
}

// Observer is told whether each delivery succeeded.
type Observer interface {
	EventPublished(ok bool)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher delivers events asynchronously. A disabled publisher drops them.
type Publisher struct {
	log     *zap.Logger
	writer  messageWriter
	obs     Observer
	enabled bool
	queue   chan kafka.Message
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPublisher builds a Kafka-backed publisher, or a no-op one when events
// are disabled.
func NewPublisher(conf config.EventsConfig, log *zap.Logger, obs Observer) (*Publisher, error) {
	log = log.Named("events")
	if !conf.Enabled {
		log.Info("Attempt event publishing disabled.")
		return &Publisher{log: log}, nil
	}
	if conf.Topic == "" || len(conf.Brokers) == 0 {
		return nil, errors.New("events: topic and brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(conf.Brokers...),
		Topic:                  conf.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	log.Info("Attempt event publishing enabled.", zap.String("topic", conf.Topic), zap.Strings("brokers", conf.Brokers))
	return newPublisherWithWriter(log, writer, obs), nil
}

func newPublisherWithWriter(log *zap.Logger, writer messageWriter, obs Observer) *Publisher {
	p := &Publisher{
		log:     log,
		writer:  writer,
		obs:     obs,
		enabled: true,
		queue:   make(chan kafka.Message, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishAttempt enqueues an attempt.recorded event keyed by applicant email.
// It never blocks: a full queue drops the event. The attempt is already stored
// when this runs, so a cancelled ctx still enqueues.
func (p *Publisher) PublishAttempt(_ context.Context, attempt *models.Attempt) {
	if !p.enabled {
		return
	}
	value, err := json.Marshal(AttemptRecorded{
		Type:                EventTypeAttemptRecorded,
		AttemptID:           attempt.ID,
		ApplicantEmail:      attempt.ApplicantEmail,
		ApplicantName:       attempt.ApplicantName,
		AttemptNumber:       attempt.AttemptNumber,
		SessionID:           attempt.SessionID,
		OverallCloseness:    attempt.OverallCloseness,
		OverallClosenessPct: attempt.OverallClosenessPct,
		Band:                attempt.Band,
		SubmittedAt:         attempt.SubmittedAt,
	})
	if err != nil {
		p.log.Error("Failed to encode attempt event", zap.String("attemptId", attempt.ID), zap.Error(err))
		p.observe(false)
		return
	}

	msg := kafka.Message{Key: []byte(attempt.ApplicantEmail), Value: value}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("Attempt event dropped, publisher closed", zap.String("attemptId", attempt.ID))
		p.observe(false)
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.log.Warn("Attempt event dropped, queue full", zap.String("attemptId", attempt.ID))
		p.observe(false)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.Error("Failed to publish attempt event", zap.ByteString("key", msg.Key), zap.Error(err))
			p.observe(false)
			continue
		}
		p.log.Debug("Attempt event published", zap.ByteString("key", msg.Key))
		p.observe(true)
	}
}

// Close drains queued events and closes the writer.
func (p *Publisher) Close(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	var err error
	select {
	case <-p.done:
	case <-ctx.Done():
		err = fmt.Errorf("events: drain: %w", ctx.Err())
	}
	if cerr := p.writer.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("events: close writer: %w", cerr)
	}
	return err
}

func (p *Publisher) observe(ok bool) {
	if p.obs != nil {
		p.obs.EventPublished(ok)
	}
}
