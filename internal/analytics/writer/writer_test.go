package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/settlement-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/settlement-backend/pkg/bigquery"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("expected error when client missing")
	}
	w, err := New(&pkgbigquery.Client{}, Config{BaseBackoff: 5 * time.Second, MaxBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.cfg.BatchSize != defaultBatchSize || w.cfg.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("expected defaults, got batch=%d attempts=%d", w.cfg.BatchSize, w.cfg.MaxAttempts)
	}
	if w.cfg.MaxBackoff != 5*time.Second {
		t.Fatalf("expected max backoff raised to base, got %s", w.cfg.MaxBackoff)
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	rawMessage := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(rawMessage)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(rawMessage) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 0 {
		t.Fatal("expected buffer to be empty after success")
	}
}

func TestWriterDoesNotRetryPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 1 {
		t.Fatalf("expected failed row to stay buffered, got %d", len(writer.buffer))
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	unavailable := status.Error(codes.Unavailable, "try later")
	fake.responses = []error{unavailable, unavailable, unavailable, unavailable}

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, len(fake.calls))
	}
}

func TestWriterBatching(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.cfg.BatchSize = 2

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no insert before batch full, got %d", len(fake.calls))
	}

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "2"}); err != nil {
		t.Fatalf("unexpected error on second insert: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected single insert after batch flush, got %d", len(fake.calls))
	}
	if got := fake.calls[0].insertIDs; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected insert ids %v", got)
	}
}

func TestWriterKeepsFailedBatchForNextFlush(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}, nil}

	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err == nil {
		t.Fatal("expected first insert to fail")
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if got := fake.calls[1].insertIDs; len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected buffered row to be resent, got %v", got)
	}
	if len(writer.buffer) != 0 {
		t.Fatalf("expected empty buffer, got %d", len(writer.buffer))
	}
}

func TestWriterFlush(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.cfg.BatchSize = 10
	if err := writer.InsertSettlement(context.Background(), types.SettlementRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected flush to insert once, got %d", len(fake.calls))
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error on empty buffer: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected empty flush to skip insert, got %d calls", len(fake.calls))
	}
}

func TestTransientClassification(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":             {nil, false},
		"http 503":        {&googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		"http 404":        {&googleapi.Error{Code: http.StatusNotFound}, false},
		"grpc exhausted":  {status.Error(codes.ResourceExhausted, "quota"), true},
		"grpc invalid":    {status.Error(codes.InvalidArgument, "bad"), false},
		"row errors mix":  {cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&googleapi.Error{Code: 503}, &googleapi.Error{Code: 400}}}}, false},
		"row errors 5xx":  {cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&googleapi.Error{Code: 503}}}}, true},
		"empty put error": {cbigquery.PutMultiError{}, false},
		"http 501":        {&googleapi.Error{Code: http.StatusNotImplemented}, false},
		"wrapped 429":     {fmt.Errorf("insert: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := transient(tc.err); got != tc.want {
				t.Fatalf("transient() = %v, want %v", got, tc.want)
			}
		})
	}
}

type insertCall struct {
	insertIDs []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	index     int
}

func (f *fakeInserter) InsertSettlementRows(_ context.Context, rows []cbigquery.ValueSaver) error {
	call := insertCall{}
	for _, row := range rows {
		_, id, _ := row.Save()
		call.insertIDs = append(call.insertIDs, id)
	}
	f.calls = append(f.calls, call)
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	writer, err := New(&pkgbigquery.Client{}, Config{BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}

	fake := &fakeInserter{}
	writer.client = fake
	return writer, fake
}
