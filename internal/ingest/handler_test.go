package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

type fakeSender struct {
	mu      sync.Mutex
	async   []types.Record
	sync    []types.Record
	syncErr error
}

func (s *fakeSender) SendAsync(_ context.Context, rec types.Record) *publisher.Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.async = append(s.async, rec)
	return publisher.Resolved(publisher.Result{Topic: rec.Topic}, nil)
}

func (s *fakeSender) SendSync(_ context.Context, rec types.Record) (publisher.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync = append(s.sync, rec)
	if s.syncErr != nil {
		return publisher.Result{}, s.syncErr
	}
	return publisher.Result{Topic: "library-events", Partition: 1, Offset: 2}, nil
}

func newTestRouter(t *testing.T, sender *fakeSender) http.Handler {
	t.Helper()
	svc, err := NewService(sender, "library-events", "scanner", zap.NewNop())
	require.NoError(t, err)
	return NewRouter(&Handler{Log: zap.NewNop(), Service: svc})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const validBody = `{"libraryEventId":null,"book":{"bookId":456,"bookName":"Kafka Using Spring Boot","bookAuthor":"Dilip"}}`

func TestPostLibraryEvent_PublishesNewEvent(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event", validBody)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	require.Len(t, sender.async, 1)
	rec := sender.async[0]
	assert.Empty(t, rec.Topic)
	assert.Nil(t, rec.Key)
	assert.Equal(t,
		`{"libraryEventId":null,"libraryEventType":"NEW","book":{"bookId":456,"bookName":"Kafka Using Spring Boot","bookAuthor":"Dilip"}}`,
		string(rec.Value))
	assert.Equal(t, string(rec.Value), rr.Body.String())
}

func TestPostLibraryEvent_ForcesNewType(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	body := `{"libraryEventId":5,"libraryEventType":"UPDATE","book":{"bookId":1,"bookName":"B","bookAuthor":"A"}}`
	rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event", body)

	require.Equal(t, http.StatusCreated, rr.Code)
	ev, err := pipeline.Decode(context.Background(), sender.async[0].Value)
	require.NoError(t, err)
	assert.Equal(t, types.EventTypeNew, ev.LibraryEventType)
	assert.Equal(t, []byte{0, 0, 0, 5}, sender.async[0].Key)
}

func TestPostLibraryEventWithTopic(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event-with-topic", validBody)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, sender.async, 1)
	assert.Equal(t, "library-events", sender.async[0].Topic)
	assert.Empty(t, sender.async[0].Headers)
}

func TestPostLibraryEventWithTopicAndHeader(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event-with-topic-and-header", validBody)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, sender.async, 1)
	rec := sender.async[0]
	assert.Equal(t, "library-events", rec.Topic)
	v, ok := rec.Header(EventSourceHeader)
	require.True(t, ok)
	assert.Equal(t, "scanner", string(v))
}

func TestPostLibraryEventSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "acknowledged", wantStatus: http.StatusCreated},
		{name: "timeout", err: &publisher.PublishTimeoutError{Timeout: time.Second}, wantStatus: http.StatusGatewayTimeout, wantCode: "publish_timeout"},
		{name: "failure", err: &publisher.PublishFailure{Err: errors.New("broker down")}, wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{syncErr: tt.err}
			rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event-synchronous", validBody)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Len(t, sender.sync, 1)
			assert.Empty(t, sender.async)
			if tt.wantCode != "" {
				assert.Contains(t, rr.Body.String(), `"code":"`+tt.wantCode+`"`)
			}
		})
	}
}

func TestPutLibraryEvent(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	h := newTestRouter(t, sender)

	rr := do(t, h, http.MethodPut, "/v1/library-event", validBody)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "libraryEventId")
	assert.Empty(t, sender.async)

	body := `{"libraryEventId":123,"book":{"bookId":456,"bookName":"Kafka Using Spring Boot 2.X","bookAuthor":"Dilip"}}`
	rr = do(t, h, http.MethodPut, "/v1/library-event", body)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, sender.async, 1)

	ev, err := pipeline.Decode(context.Background(), sender.async[0].Value)
	require.NoError(t, err)
	assert.Equal(t, types.EventTypeUpdate, ev.LibraryEventType)
	assert.Equal(t, []byte{0, 0, 0, 123}, sender.async[0].Key)
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty_body", body: ``},
		{name: "invalid_json", body: `{"book":`},
		{name: "unknown_field", body: `{"book":{"bookId":1,"bookName":"B","bookAuthor":"A"},"isbn":"x"}`},
		{name: "missing_book", body: `{"libraryEventId":null}`},
		{name: "blank_book_name", body: `{"book":{"bookId":1,"bookName":" ","bookAuthor":"A"}}`},
		{name: "blank_author", body: `{"book":{"bookId":1,"bookName":"B","bookAuthor":""}}`},
		{name: "trailing_document", body: validBody + validBody},
		{name: "id_out_of_key_range", body: `{"libraryEventId":4294967296,"book":{"bookId":1,"bookName":"B","bookAuthor":"A"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{}
			rr := do(t, newTestRouter(t, sender), http.MethodPost, "/v1/library-event", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"code":"validation_error"`)
			assert.Empty(t, sender.async)
		})
	}
}

func TestRouter_MethodAndHealth(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeSender{})

	rr := do(t, h, http.MethodGet, "/v1/library-event", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	newTestRouter(t, &fakeSender{}).ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil, "t", "s", zap.NewNop())
	assert.Error(t, err)
	_, err = NewService(&fakeSender{}, "", "s", zap.NewNop())
	assert.Error(t, err)
	_, err = NewService(&fakeSender{}, "t", "s", nil)
	assert.Error(t, err)
}

func TestLogMessages(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	sender := &fakeSender{syncErr: &publisher.PublishTimeoutError{Timeout: time.Second}}
	svc, err := NewService(sender, "library-events", "scanner", log)
	require.NoError(t, err)
	h := NewRouter(&Handler{Log: log, Service: svc})

	rr := do(t, h, http.MethodPost, "/v1/library-event-synchronous", validBody)
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)

	assert.Equal(t, 1, logs.FilterMessage("Synchronous publish timed out").Len())
	served := logs.FilterMessage("HTTP request served").All()
	require.Len(t, served, 1)
	assert.Equal(t, int64(http.StatusGatewayTimeout), served[0].ContextMap()["status"])
}
