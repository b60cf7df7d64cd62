package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/hashicorp/go-retryablehttp"
)

// KafkaSink writes one message per summary, keyed by address.
type KafkaSink struct {
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaSink connects a synchronous producer to brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(p, topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{topic: topic, producer: p}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return "kafka" }

// Publish implements Sink. SyncProducer does not take a context.
func (s *KafkaSink) Publish(_ context.Context, batch []Summary) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(batch))
	for _, summary := range batch {
		payload, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(summary.Address),
			Value: sarama.ByteEncoder(payload),
		})
	}
	if err := s.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// WebhookSink posts each batch as one JSON document.
type WebhookSink struct {
	url    string
	apiKey string
	client *retryablehttp.Client
}

// NewWebhookSink creates a sink that retries transient failures twice.
func NewWebhookSink(url, apiKey string) *WebhookSink {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &WebhookSink{url: url, apiKey: apiKey, client: c}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Publish implements Sink.
func (s *WebhookSink) Publish(ctx context.Context, batch []Summary) error {
	body := struct {
		Reports    []Summary `json:"reports"`
		ExportTime string    `json:"export_time"`
		Count      int       `json:"count"`
	}{
		Reports:    batch,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(batch),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Close implements Sink.
func (s *WebhookSink) Close() error { return nil }
