package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/listener/notification"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// PublishedEvent is the payload of the snapshot-published subject. It carries counts only;
// consumers read the snapshot itself from the database or the cache.
type PublishedEvent struct {
	RunID          string         `json:"run_id"`
	JobExecutionID string         `json:"job_execution_id"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Bins           int            `json:"bins"`
	ResolvedBins   int            `json:"resolved_bins"`
	Critical       int            `json:"critical"`
	Suggested      map[string]int `json:"suggested"`
}

// JobFinishedEvent is the payload of the job subject.
type JobFinishedEvent struct {
	JobName        string    `json:"job_name"`
	JobExecutionID string    `json:"job_execution_id"`
	Status         string    `json:"status"`
	ExitStatus     string    `json:"exit_status"`
	Message        string    `json:"message"`
	FinishedAt     time.Time `json:"finished_at"`
}

// natsConn is the part of *nats.Conn the notifier uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSNotifier announces published snapshots and finished job runs. The connection is
// opened on first use so an unreachable server only fails the publish, never startup.
type NATSNotifier struct {
	cfg     appconfig.NATSConfig
	dial    func() (natsConn, error)
	mu      sync.Mutex
	conn    natsConn
	timeout time.Duration
}

var (
	_ Publisher             = (*NATSNotifier)(nil)
	_ notification.Notifier = (*NATSNotifier)(nil)
)

// NewNATSNotifier creates a notifier for cfg.
func NewNATSNotifier(cfg appconfig.NATSConfig) *NATSNotifier {
	return newNATSNotifier(cfg, func() (natsConn, error) {
		return nats.Connect(cfg.URL,
			nats.Name(cfg.Name),
			nats.Timeout(cfg.ConnectTimeout),
			nats.MaxReconnects(2),
			nats.ReconnectWait(time.Second),
		)
	})
}

func newNATSNotifier(cfg appconfig.NATSConfig, dial func() (natsConn, error)) *NATSNotifier {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSNotifier{cfg: cfg, dial: dial, timeout: timeout}
}

// Name implements Publisher.
func (n *NATSNotifier) Name() string { return "nats" }

// Publish implements Publisher.
func (n *NATSNotifier) Publish(ctx context.Context, doc *Document) error {
	event := PublishedEvent{
		RunID:          doc.RunID,
		JobExecutionID: doc.JobExecutionID,
		GeneratedAt:    doc.GeneratedAt,
		Bins:           doc.Summary.Overall.Total,
		ResolvedBins:   doc.Summary.Overall.Resolved,
		Critical:       doc.Summary.Overall.Critical,
		Suggested:      make(map[string]int, len(doc.Suggested)),
	}
	for campus, sites := range doc.Suggested {
		event.Suggested[string(campus)] = len(sites)
	}
	return n.send(ctx, n.cfg.Subject, event)
}

// NotifyJobCompletion implements notification.Notifier. Without a job subject it does nothing.
func (n *NATSNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	if n.cfg.JobSubject == "" {
		return nil
	}
	event := JobFinishedEvent{
		JobName:        execution.JobName,
		JobExecutionID: execution.ID,
		Status:         string(execution.Status),
		ExitStatus:     string(execution.ExitStatus),
		Message:        notification.Message(execution),
		FinishedAt:     time.Now(),
	}
	if execution.EndTime != nil {
		event.FinishedAt = *execution.EndTime
	}
	return n.send(ctx, n.cfg.JobSubject, event)
}

func (n *NATSNotifier) send(ctx context.Context, subject string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", subject, err)
	}
	conn, err := n.connection()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	if err := conn.FlushTimeout(n.timeout); err != nil {
		return fmt.Errorf("failed to flush %s: %w", subject, err)
	}
	logger.Debugf("NATS: published %d bytes to %s.", len(data), subject)
	return nil
}

func (n *NATSNotifier) connection() (natsConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		return n.conn, nil
	}
	conn, err := n.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", n.cfg.URL, err)
	}
	n.conn = conn
	return conn, nil
}

// Close closes the connection if one was opened.
func (n *NATSNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}
