package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/mcdev12/scoreboard/go/internal/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the NATS event relay
type Config struct {
	URL           string
	SubjectPrefix string
	// StreamName, when set, makes sure a JetStream stream captures every relayed subject
	StreamName    string
	StreamMaxAge  time.Duration
	QueueSize     int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "scoreboard",
		StreamMaxAge:  24 * time.Hour,
		QueueSize:     1000,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Conn is the publishing half of a NATS connection
type Conn interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON document published for every match event
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type outgoing struct {
	matchID string
	msg     broadcast.Message
	at      time.Time
}

// Publisher mirrors match events onto NATS subjects of the form
// <prefix>.match.<matchID>.<eventType>. Relay never blocks callers; events
// are queued and dropped when the queue is saturated.
type Publisher struct {
	conn    Conn
	nc      *nats.Conn
	config  Config
	queue   chan outgoing
	metrics metrics.Collector

	wg sync.WaitGroup
}

// Connect dials NATS and returns a publisher bound to the connection
func Connect(ctx context.Context, config Config, collector metrics.Collector) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("scoreboard-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	if config.StreamName != "" {
		if err := ensureStream(ctx, nc, config); err != nil {
			nc.Close()
			return nil, err
		}
	}

	p := NewPublisher(nc, config, collector)
	p.nc = nc
	return p, nil
}

func ensureStream(ctx context.Context, nc *nats.Conn, config Config) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Scoreboard match events",
		Subjects:    []string{subjectPrefix(config.SubjectPrefix) + ".match.>"},
		MaxAge:      config.StreamMaxAge,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}

	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Strs("subjects", stream.CachedInfo().Config.Subjects).
		Msg("JetStream stream ready")
	return nil
}

// NewPublisher creates a publisher over an existing connection
func NewPublisher(conn Conn, config Config, collector metrics.Collector) *Publisher {
	size := config.QueueSize
	if size <= 0 {
		size = DefaultConfig().QueueSize
	}
	return &Publisher{
		conn:    conn,
		config:  config,
		queue:   make(chan outgoing, size),
		metrics: metrics.OrNoOp(collector),
	}
}

// Relay queues msg for publication
func (p *Publisher) Relay(matchID string, msg broadcast.Message) {
	select {
	case p.queue <- outgoing{matchID: matchID, msg: msg, at: time.Now()}:
	default:
		p.metrics.RecordRelayPublish(false)
		log.Warn().
			Str("match_id", matchID).
			Str("event_type", msg.Kind()).
			Msg("relay queue full, dropping event")
	}
}

// Start publishes queued events until ctx is cancelled, then drains
// whatever is left in the queue.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	log.Info().Str("prefix", p.config.SubjectPrefix).Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			p.drain()
			log.Info().Msg("event relay shutting down")
			return
		case out := <-p.queue:
			p.publish(out)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case out := <-p.queue:
			p.publish(out)
		default:
			return
		}
	}
}

func (p *Publisher) publish(out outgoing) {
	subject := Subject(p.config.SubjectPrefix, out.matchID, out.msg.Kind())

	data, err := encode(out)
	if err != nil {
		p.metrics.RecordRelayPublish(false)
		log.Error().Err(err).Str("match_id", out.matchID).Msg("failed to encode relay envelope")
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.metrics.RecordRelayPublish(false)
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("failed to publish event")
		return
	}

	p.metrics.RecordRelayPublish(true)
	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("event relayed")
}

// Close waits for Start to return and closes the owned NATS connection, if any
func (p *Publisher) Close() {
	p.wg.Wait()
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("NATS drain failed")
		}
	}
}

// Connected reports whether the owned NATS connection is up. Publishers
// built over a caller's connection always report true.
func (p *Publisher) Connected() bool {
	if p.nc == nil {
		return true
	}
	return p.nc.IsConnected()
}

func encode(out outgoing) ([]byte, error) {
	payload, err := json.Marshal(out.msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", out.msg.Kind(), err)
	}
	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: out.msg.Kind(),
		MatchID:   out.matchID,
		Timestamp: out.at.UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Subject builds the NATS subject for a match event. Match ids are free-form,
// so subject-reserved characters are replaced.
func Subject(prefix, matchID, eventType string) string {
	return fmt.Sprintf("%s.match.%s.%s", subjectPrefix(prefix), sanitizeToken(matchID), sanitizeToken(eventType))
}

func subjectPrefix(prefix string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return "scoreboard"
	}
	return prefix
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}
