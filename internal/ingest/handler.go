package ingest

import (
	"errors"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

const maxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler serves the library-event endpoints.
type Handler struct {
	Log     *zap.Logger
	Service *Service
}

// PostLibraryEvent publishes a NEW event asynchronously.
func (h *Handler) PostLibraryEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeNew(w, r)
	if !ok {
		return
	}
	if _, err := h.Service.SendLibraryEvent(r.Context(), ev); err != nil {
		h.internalError(w, "Failed to send library event", err)
		return
	}
	writeEvent(w, http.StatusCreated, ev)
}

// PostLibraryEventSync publishes a NEW event and waits for the broker.
func (h *Handler) PostLibraryEventSync(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeNew(w, r)
	if !ok {
		return
	}

	res, err := h.Service.SendLibraryEventSync(r.Context(), ev)
	if err != nil {
		var te *publisher.PublishTimeoutError
		if errors.As(err, &te) {
			h.Log.Error("Synchronous publish timed out", zap.Error(err))
			WriteError(w, http.StatusGatewayTimeout, "publish_timeout", err.Error())
			return
		}
		h.internalError(w, "Failed to send library event synchronously", err)
		return
	}

	h.Log.Debug("Library event sent synchronously",
		zap.Int("partition", res.Partition),
		zap.Int64("offset", res.Offset),
	)
	writeEvent(w, http.StatusCreated, ev)
}

// PostLibraryEventWithTopic publishes a NEW event to the named topic.
func (h *Handler) PostLibraryEventWithTopic(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeNew(w, r)
	if !ok {
		return
	}
	if _, err := h.Service.SendLibraryEventWithTopic(r.Context(), ev); err != nil {
		h.internalError(w, "Failed to send library event", err)
		return
	}
	writeEvent(w, http.StatusCreated, ev)
}

// PostLibraryEventWithTopicAndHeader publishes a NEW event with an
// event-source header.
func (h *Handler) PostLibraryEventWithTopicAndHeader(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeNew(w, r)
	if !ok {
		return
	}
	if _, err := h.Service.SendLibraryEventWithTopicAndHeader(r.Context(), ev); err != nil {
		h.internalError(w, "Failed to send library event", err)
		return
	}
	writeEvent(w, http.StatusCreated, ev)
}

// PutLibraryEvent publishes an UPDATE for an existing event.
func (h *Handler) PutLibraryEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decode(w, r)
	if !ok {
		return
	}
	if ev.LibraryEventID == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "please pass the libraryEventId")
		return
	}
	ev.LibraryEventType = types.EventTypeUpdate

	if _, err := h.Service.SendLibraryEvent(r.Context(), ev); err != nil {
		h.internalError(w, "Failed to send library event", err)
		return
	}
	writeEvent(w, http.StatusOK, ev)
}

func (h *Handler) decodeNew(w http.ResponseWriter, r *http.Request) (*types.LibraryEvent, bool) {
	ev, ok := h.decode(w, r)
	if !ok {
		return nil, false
	}
	ev.LibraryEventType = types.EventTypeNew
	return ev, true
}

// decode reads and validates the request body. The event type is set by
// the endpoint, so it may be omitted by clients.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*types.LibraryEvent, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var ev types.LibraryEvent
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&ev); err != nil {
		msg := "invalid json"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		WriteError(w, http.StatusBadRequest, "validation_error", msg)
		return nil, false
	}
	if dec.More() {
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid json")
		return nil, false
	}

	if err := validateRequest(&ev); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return nil, false
	}
	return &ev, true
}

func validateRequest(ev *types.LibraryEvent) error {
	if _, err := pipeline.EncodeKey(ev.LibraryEventID); err != nil {
		return &pipeline.ValidationError{Field: "libraryEventId", Reason: "is out of range"}
	}
	if ev.Book == nil {
		return &pipeline.ValidationError{Field: "book", Reason: "is required"}
	}
	if strings.TrimSpace(ev.Book.BookName) == "" {
		return &pipeline.ValidationError{Field: "book.bookName", Reason: "must not be blank"}
	}
	if strings.TrimSpace(ev.Book.BookAuthor) == "" {
		return &pipeline.ValidationError{Field: "book.bookAuthor", Reason: "must not be blank"}
	}
	return nil
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.Log.Error(msg, zap.Error(err))
	WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w http.ResponseWriter, status int, ev *types.LibraryEvent) {
	body, err := pipeline.Encode(ev)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
