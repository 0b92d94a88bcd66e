package model

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Response is the envelope every JSON endpoint answers with. Exactly one
// of Data and Error is meaningful.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// NewResponse wraps data in a successful envelope.
func NewResponse(reqID string, data any, pg *Pagination) Response {
	return Response{Status: "ok", RequestID: reqID, Timestamp: time.Now().UTC(), Data: data, Pagination: pg}
}

// NewErrorResponse wraps apiErr in a failed envelope. data may carry a
// partial result, as /healthz does.
func NewErrorResponse(reqID string, data any, apiErr *APIError) Response {
	return Response{Status: "error", RequestID: reqID, Timestamp: time.Now().UTC(), Data: data, Error: apiErr}
}

// Pagination describes one page of a list.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func NewPagination(total, limit, offset int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// HasPrev reports whether a page precedes this one.
func (p *Pagination) HasPrev() bool { return p.Offset > 0 }

// NextOffset is the offset of the following page.
func (p *Pagination) NextOffset() int { return p.Offset + p.Limit }

// PrevOffset is the offset of the preceding page, never negative.
func (p *Pagination) PrevOffset() int { return max(p.Offset-p.Limit, 0) }

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions selects one page of a list.
type ListOptions struct {
	Limit  int
	Offset int
}

func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultPageSize}
}

// Clamp keeps Limit in [1, MaxPageSize] and Offset non-negative. A
// non-positive Limit becomes DefaultPageSize.
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	o.Limit = min(o.Limit, MaxPageSize)
	o.Offset = max(o.Offset, 0)
}

// ParseListOptions reads "limit" and "offset" from a query string. Absent
// values fall back to pageSize and 0. The result is clamped.
func ParseListOptions(values url.Values, pageSize int) (ListOptions, error) {
	opts := ListOptions{Limit: pageSize}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := values.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return DefaultListOptions(), fmt.Errorf("%s must be an integer", p.name)
		}
		*p.dst = n
	}
	opts.Clamp()
	return opts, nil
}
