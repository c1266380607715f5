// Package stream implements the typed SSE event grammar of spec §4.15:
//
//	meta -> retrieval* -> token* -> citation* -> final   (success)
//	meta -> retrieval* -> error                          (failure)
//
// It is grounded on the donor's internal/handler/chat.go sendEvent/SSE
// framing idiom, replacing the donor's ad-hoc per-call-site JSON literals
// with a typed Event/Emitter pair so the terminal-event rules of §4.15 are
// enforced in one place instead of at every call site; the order of the
// events before the terminal one is left to the caller.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventType names one of the six event kinds the grammar allows.
type EventType string

const (
	EventMeta      EventType = "meta"
	EventRetrieval EventType = "retrieval"
	EventToken     EventType = "token"
	EventCitation  EventType = "citation"
	EventFinal     EventType = "final"
	EventError     EventType = "error"
)

// MetaPayload is the first event of every stream: request identifiers and
// the classified intent/complexity, sent before any retrieval work starts.
type MetaPayload struct {
	RequestID  string `json:"request_id"`
	TraceID    string `json:"trace_id"`
	Intent     string `json:"intent,omitempty"`
	Complexity string `json:"complexity,omitempty"`
}

// RetrievalPayload reports on one stage of retrieval (lexical, dense,
// rerank, parent_expand) as it completes.
type RetrievalPayload struct {
	Stage      string `json:"stage"`
	NumResults int    `json:"num_results"`
}

// TokenPayload carries one increment of generated text, in generation
// order.
type TokenPayload struct {
	Text string `json:"text"`
}

// CitationPayload announces one citation backing the in-progress answer.
// Citations may be emitted any time after the first token and before
// final, per §4.15's ordering guarantee.
type CitationPayload struct {
	ChunkID string `json:"chunk_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// FinalPayload is the terminal event of a successful stream.
type FinalPayload struct {
	TLDR              string   `json:"tldr"`
	KeyPoints         []string `json:"key_points"`
	Body              string   `json:"body"`
	Confidence        float64  `json:"confidence"`
	ProcessingTimeMs  int64    `json:"processing_time_ms"`
	Warnings          []string `json:"warnings,omitempty"`
}

// ErrorPayload is the terminal event of a failed stream.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Emitter writes the typed event grammar to an SSE-capable ResponseWriter,
// enforcing that final/error are each sent at most once and end the stream:
// any event after them is rejected. It does not check that meta comes first.
type Emitter struct {
	w       http.ResponseWriter
	f       http.Flusher
	metaSent bool
	closed  bool
}

// NewEmitter sets the SSE headers and returns an Emitter, or an error if w
// does not support flushing.
func NewEmitter(w http.ResponseWriter) (*Emitter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream.NewEmitter: response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Emitter{w: w, f: f}, nil
}

// Meta sends the meta event. It must be the first event of the stream.
func (e *Emitter) Meta(p MetaPayload) error {
	if err := e.send(EventMeta, p); err != nil {
		return err
	}
	e.metaSent = true
	return nil
}

// Retrieval sends a retrieval progress event.
func (e *Emitter) Retrieval(p RetrievalPayload) error {
	return e.send(EventRetrieval, p)
}

// Token sends one generation increment.
func (e *Emitter) Token(text string) error {
	return e.send(EventToken, TokenPayload{Text: text})
}

// Citation sends one citation event.
func (e *Emitter) Citation(p CitationPayload) error {
	return e.send(EventCitation, p)
}

// Final sends the terminal success event and closes the stream.
func (e *Emitter) Final(p FinalPayload) error {
	if e.closed {
		return fmt.Errorf("stream.Emitter.Final: stream already closed")
	}
	err := e.send(EventFinal, p)
	e.closed = true
	return err
}

// Error sends the terminal failure event and closes the stream.
func (e *Emitter) Error(code, message string) error {
	if e.closed {
		return fmt.Errorf("stream.Emitter.Error: stream already closed")
	}
	err := e.send(EventError, ErrorPayload{Code: code, Message: message})
	e.closed = true
	return err
}

// Closed reports whether a terminal event has already been sent.
func (e *Emitter) Closed() bool {
	return e.closed
}

func (e *Emitter) send(event EventType, payload any) error {
	if e.closed {
		return fmt.Errorf("stream.Emitter.send: %s after the stream was closed", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("stream.Emitter.send: marshal %s: %w", event, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("stream.Emitter.send: write %s: %w", event, err)
	}
	e.f.Flush()
	return nil
}
