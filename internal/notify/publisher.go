package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
)

// Conn is the part of a NATS connection the publisher needs. *nats.Conn
// implements it.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Config configures a Publisher
type Config struct {
	URL string
	// Subject is the subject prefix; events go to <Subject>.<root type>
	Subject         string
	Name            string
	Source          string
	MaxRetries      int
	InitialInterval time.Duration
	Timeout         time.Duration
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = "guardian.violations"
	}
	if c.Name == "" {
		c.Name = "guardian"
	}
	if c.Source == "" {
		c.Source = c.Name
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Event is the payload published for one failed validation or guarded call
type Event struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	Source        string           `json:"source"`
	RootType      string           `json:"root_type"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Violations    []ViolationEvent `json:"violations"`
}

// ViolationEvent describes one violation of an Event
type ViolationEvent struct {
	Check        string `json:"check"`
	ErrorCode    string `json:"error_code"`
	Message      string `json:"message"`
	Path         string `json:"path"`
	Severity     int    `json:"severity"`
	InvalidValue string `json:"invalid_value,omitempty"`
}

// NewEvent builds an event from violations
func NewEvent(source string, root interface{}, violations []*constraint.Violation) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
	if t := constraint.TypeOf(root); t != nil {
		e.RootType = constraint.TypeName(t)
	}
	for _, v := range violations {
		if e.CorrelationID == "" {
			e.CorrelationID = v.CorrelationID
		}
		if e.RootType == "" && v.Context.Type != nil {
			e.RootType = constraint.TypeName(v.Context.Type)
		}
		ve := ViolationEvent{
			Check:     v.CheckName,
			ErrorCode: v.ErrorCode,
			Message:   v.Message,
			Path:      v.PathString(),
			Severity:  v.Severity,
		}
		if v.InvalidValue != nil {
			ve.InvalidValue = constraint.Stringify(v.InvalidValue)
		}
		e.Violations = append(e.Violations, ve)
	}
	return e
}

// Publisher publishes violation events to NATS with retries. It is a
// validator.Observer and a guard.Listener.
type Publisher struct {
	conn   Conn
	cfg    Config
	logger *mdwlog.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials NATS and returns a Publisher owning the connection
func Connect(cfg Config, logger *mdwlog.Logger) (*Publisher, error) {
	cfg.applyDefaults()
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, mdwerror.Wrap(err, "failed to connect to NATS").
			WithCode(mdwerror.CodePublishError).
			WithOperation("notify.Connect").
			WithDetail("url", cfg.URL)
	}
	return NewPublisher(nc, cfg, logger), nil
}

// NewPublisher creates a Publisher on an existing connection
func NewPublisher(conn Conn, cfg Config, logger *mdwlog.Logger) *Publisher {
	cfg.applyDefaults()
	if logger == nil {
		logger = mdwlog.GetDefault().WithField("component", "notify")
	}
	return &Publisher{conn: conn, cfg: cfg, logger: logger}
}

// Subject returns the subject an event is published on
func (p *Publisher) Subject(e *Event) string {
	if e.RootType == "" {
		return p.cfg.Subject
	}
	return p.cfg.Subject + "." + strings.ToLower(e.RootType)
}

// Publish sends e, retrying with exponential backoff up to MaxRetries
// times. Marshalling errors and a closed publisher are not retried.
func (p *Publisher) Publish(ctx context.Context, e *Event) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return mdwerror.New("publisher is closed").
			WithCode(mdwerror.CodeInvalidSequence).
			WithOperation("notify.Publish")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return mdwerror.Wrap(err, "failed to encode event").
			WithCode(mdwerror.CodePublishError).
			WithOperation("notify.Publish")
	}
	subject := p.Subject(e)

	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.cfg.MaxRetries > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.cfg.InitialInterval
		exp.MaxElapsedTime = p.cfg.Timeout
		// WithMaxRetries treats zero as unlimited
		b = backoff.WithMaxRetries(exp, uint64(p.cfg.MaxRetries))
	}
	policy := backoff.WithContext(b, ctx)

	attempts := 0
	operation := func() error {
		attempts++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if err := p.conn.Publish(subject, data); err != nil {
			return err
		}
		return p.conn.FlushTimeout(p.cfg.Timeout)
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Debug("Publish failed, retrying", mdwlog.Fields{
			"subject": subject,
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			err = perm.Err
		}
		return mdwerror.Wrap(err, "failed to publish event").
			WithCode(mdwerror.CodePublishError).
			WithOperation("notify.Publish").
			WithDetail("subject", subject).
			WithDetail("attempts", attempts)
	}
	return nil
}

// OnValidation implements validator.Observer
func (p *Publisher) OnValidation(root interface{}, violations []*constraint.Violation, _ time.Duration, err error) {
	if err != nil || len(violations) == 0 {
		return
	}
	p.publish(context.Background(), NewEvent(p.cfg.Source, root, violations))
}

// OnConstraintsViolated implements guard.Listener
func (p *Publisher) OnConstraintsViolated(ctx context.Context, err *constraint.ConstraintsViolatedError) error {
	if err == nil || len(err.Violations) == 0 {
		return nil
	}
	p.publish(ctx, NewEvent(p.cfg.Source, err.Violations[0].ValidatedObject, err.Violations))
	return nil
}

func (p *Publisher) publish(ctx context.Context, e *Event) {
	if err := p.Publish(ctx, e); err != nil {
		p.logger.WarnWithErr("Failed to publish violations", err, mdwlog.Fields{"event": e.ID})
	}
}

// Close closes the connection. Further publishes fail.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.conn.Close()
}
