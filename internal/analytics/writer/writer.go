// Package writer streams settlement rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/settlement-backend/pkg/bigquery"
)

const (
	defaultBatchSize   = 1
	defaultMaxAttempts = 3
	defaultBaseBackoff = 250 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second
)

// Config zero values fall back to one row per insert and three attempts.
type Config struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = max(c.BaseBackoff, defaultMaxBackoff)
	}
	return c
}

func (c Config) backoff() retry.Backoff {
	b := retry.NewExponential(c.BaseBackoff)
	b = retry.WithCappedDuration(c.MaxBackoff, b)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(c.MaxAttempts-1), b)
}

type settlementInserter interface {
	InsertSettlementRows(ctx context.Context, rows []cbigquery.ValueSaver) error
}

// BigQueryWriter buffers rows until BatchSize is reached. A failed batch stays
// buffered and is retried with the next insert or Flush; BigQuery drops the
// duplicates by insert id.
type BigQueryWriter struct {
	client settlementInserter
	cfg    Config

	mu     sync.Mutex
	buffer []types.SettlementRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return &BigQueryWriter{client: client, cfg: cfg.withDefaults()}, nil
}

func (w *BigQueryWriter) InsertSettlement(ctx context.Context, row types.SettlementRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.cfg.BatchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is buffered. Call it on shutdown.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	savers := make([]cbigquery.ValueSaver, 0, len(w.buffer))
	for i := range w.buffer {
		savers = append(savers, &w.buffer[i])
	}

	err := retry.Do(ctx, w.cfg.backoff(), func(ctx context.Context) error {
		err := w.client.InsertSettlementRows(ctx, savers)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %d settlement rows: %w", len(savers), err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

// transient reports whether every underlying failure is worth retrying.
// Row level errors are retried only if none of them is permanent.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var putErr cbigquery.PutMultiError
	if errors.As(err, &putErr) {
		return len(putErr) > 0 && allOf(len(putErr), func(i int) bool { return transient(putErr[i].Errors) })
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && allOf(len(multi), func(i int) bool { return transient(multi[i]) })
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		}
		return apiErr.Code >= http.StatusInternalServerError && apiErr.Code != http.StatusNotImplemented
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allOf(n int, pred func(int) bool) bool {
	for i := range n {
		if !pred(i) {
			return false
		}
	}
	return true
}

// EncodeJSON converts a payload for a BigQuery JSON column. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		marshaled, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = marshaled
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
