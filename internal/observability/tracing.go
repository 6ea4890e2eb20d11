// Package observability carries the logger construction, request-id context
// plumbing, and the in-process spans that time HTTP requests and pipeline
// stages.
package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

// Span times one operation. Spans started under an existing span share its
// trace id and record it as parent.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Operation string
	Start     time.Time
	End       time.Time
	Tags      map[string]string
	Status    SpanStatus
	Err       string
}

type spanContextKey struct{}

func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		TraceID:   newID(),
		SpanID:    newID(),
		Operation: operation,
		Start:     time.Now(),
		Status:    SpanStatusOK,
		Tags:      make(map[string]string),
	}
	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}
	return context.WithValue(ctx, spanContextKey{}, span), span
}

// Finish stamps the end time and returns the span duration.
func (s *Span) Finish() time.Duration {
	s.End = time.Now()
	return s.End.Sub(s.Start)
}

func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

func (s *Span) SetError(err error) {
	s.Status = SpanStatusError
	if err != nil {
		s.Err = err.Error()
	}
}

func GetSpan(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

func newID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
