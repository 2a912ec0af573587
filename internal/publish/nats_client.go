// Package publish sends build summaries to NATS JetStream and keeps the
// latest verdict in a JetStream key-value bucket.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docverify/internal/config"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/retry"
)

// lastKey holds the most recent summary in the KV bucket.
const lastKey = "last"

// Summary is the message published for every build.
type Summary struct {
	BuildID     string         `json:"build_id"`
	Verdict     report.Verdict `json:"verdict"`
	Incomplete  bool           `json:"incomplete,omitempty"`
	Counts      report.Counts  `json:"counts"`
	Stats       report.Stats   `json:"stats"`
	DurationMS  int64          `json:"duration_ms"`
	PublishedAt time.Time      `json:"published_at"`
}

// NewSummary condenses r.
func NewSummary(r *report.Report) Summary {
	return Summary{
		BuildID:    r.BuildID,
		Verdict:    r.Verdict,
		Incomplete: r.Incomplete,
		Counts:     r.Counts,
		Stats:      r.Stats,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// streamPublisher and keyValue are the parts of JetStream the client uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type keyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// NATSClient publishes report summaries.
type NATSClient struct {
	conn     *nats.Conn
	js       streamPublisher
	kv       keyValue
	subject  string
	kvBucket string
	policy   retry.Policy
	now      func() time.Time
}

// NewNATSClient connects to the configured server and opens or creates the
// KV bucket.
func NewNATSClient(ctx context.Context, cfg config.PublishConfig) (*NATSClient, error) {
	if !cfg.Enabled() {
		return nil, derrors.ConfigError("report publishing is not configured").Build()
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("docverify"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, derrors.MessagingError("failed to connect to NATS").
			WithCause(err).WithContext("url", cfg.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, derrors.MessagingError("failed to create JetStream context").WithCause(err).Build()
	}

	kv, err := initKVBucket(ctx, js, cfg.KVBucket)
	if err != nil {
		conn.Close()
		return nil, derrors.MessagingError("failed to initialize KV bucket").
			WithCause(err).WithContext("bucket", cfg.KVBucket).Build()
	}

	slog.Info("NATS client initialized for report publishing",
		"url", cfg.URL,
		"subject", cfg.Subject,
		"kv_bucket", cfg.KVBucket)

	c := newClient(conn, js, kv, cfg.Subject, cfg.KVBucket)
	mode, _ := retry.ParseMode(cfg.Backoff)
	c.policy = retry.NewPolicy(mode, 0, 0, cfg.Retries)
	return c, nil
}

func newClient(conn *nats.Conn, js streamPublisher, kv keyValue, subject, bucket string) *NATSClient {
	return &NATSClient{
		conn:     conn,
		js:       js,
		kv:       kv,
		subject:  subject,
		kvBucket: bucket,
		policy:   retry.NewPolicy(retry.BackoffLinear, 0, 0, 0),
		now:      time.Now,
	}
}

// initKVBucket returns the bucket, creating it when it does not exist.
func initKVBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Latest docverify build summary",
		MaxBytes:    16 * 1024 * 1024,
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	slog.Info("Created KV bucket for build summaries", "bucket", bucket)
	return kv, nil
}

// Publish sends the summary of r to the stream subject and stores it as the
// latest summary. Failed attempts are retried according to the client's
// retry policy.
func (c *NATSClient) Publish(ctx context.Context, r *report.Report) error {
	s := NewSummary(r)
	s.PublishedAt = c.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return derrors.MessagingError("failed to marshal summary").WithCause(err).Build()
	}

	err = c.policy.Do(ctx, "publish summary", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.publishOnce(ctx, data)
	})
	if err != nil {
		return err
	}

	slog.Debug("Published build summary",
		logfields.BuildID(s.BuildID),
		"verdict", s.Verdict,
		"subject", c.subject)
	return nil
}

func (c *NATSClient) publishOnce(ctx context.Context, data []byte) error {
	if _, err := c.js.Publish(ctx, c.subject, data); err != nil {
		return derrors.MessagingError("failed to publish summary").
			WithCause(err).WithContext("subject", c.subject).Build()
	}
	if _, err := c.kv.Put(ctx, lastKey, data); err != nil {
		return derrors.MessagingError("failed to store summary").
			WithCause(err).WithContext("bucket", c.kvBucket).Build()
	}
	return nil
}

// LastSummary returns the most recently stored summary, or nil when none
// was stored yet.
func (c *NATSClient) LastSummary(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	entry, err := c.kv.Get(ctx, lastKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, derrors.MessagingError("failed to get summary").WithCause(err).Build()
	}

	var s Summary
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return nil, derrors.MessagingError("failed to unmarshal summary").WithCause(err).Build()
	}
	return &s, nil
}

// Close closes the NATS connection.
func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
