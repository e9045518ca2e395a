// internal/model/fetch_result.go
package model

import (
	"encoding/json"
	"fmt"
	"time"

	custom_errors "project-sync/internal/errors"
)

const (
	fetchedTag     = "fetched"
	fetchFailedTag = "error"
)

// FetchResult is the outcome of the most recent sync attempt on one channel.
// The implementations are Fetched and FetchFailed.
type FetchResult interface {
	// Timestamp is the time of the attempt, whether it succeeded or not.
	Timestamp() time.Time
	isFetchResult()
}

// Fetched records a successful attempt.
type Fetched struct {
	At time.Time
}

// FetchFailed records a failed attempt. Message is shown to the user as is.
type FetchFailed struct {
	At      time.Time
	Message string
}

func (f Fetched) Timestamp() time.Time     { return f.At }
func (f FetchFailed) Timestamp() time.Time { return f.At }

func (Fetched) isFetchResult()     {}
func (FetchFailed) isFetchResult() {}

// NewFetchResult turns the outcome of an attempt made at 'at' into a FetchResult.
func NewFetchResult(at time.Time, err error) FetchResult {
	if err != nil {
		return FetchFailed{At: at, Message: err.Error()}
	}
	return Fetched{At: at}
}

// NormalizeFetchResult returns r with pointer variants replaced by their value form,
// so a type switch over Fetched and FetchFailed is exhaustive. Nil pointers become nil.
func NormalizeFetchResult(r FetchResult) FetchResult {
	switch r := r.(type) {
	case *Fetched:
		if r == nil {
			return nil
		}
		return *r
	case *FetchFailed:
		if r == nil {
			return nil
		}
		return *r
	default:
		return r
	}
}

// IsStale reports whether a channel needs attention. Only a success newer than maxAge is fresh.
func IsStale(r FetchResult, now time.Time, maxAge time.Duration) bool {
	switch r := NormalizeFetchResult(r).(type) {
	case Fetched:
		return now.Sub(r.At) > maxAge
	default:
		return true
	}
}

type fetchedJSON struct {
	Timestamp string `json:"timestamp"`
}

type fetchFailedJSON struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// MarshalFetchResult encodes r as an externally tagged union. A nil result encodes as null.
func MarshalFetchResult(r FetchResult) ([]byte, error) {
	switch r := NormalizeFetchResult(r).(type) {
	case nil:
		return []byte("null"), nil
	case Fetched:
		return json.Marshal(map[string]fetchedJSON{
			fetchedTag: {Timestamp: encodeTimestamp(r.At)},
		})
	case FetchFailed:
		return json.Marshal(map[string]fetchFailedJSON{
			fetchFailedTag: {Timestamp: encodeTimestamp(r.At), Error: r.Message},
		})
	default:
		return nil, fmt.Errorf("encode fetch result: unsupported type %T", r)
	}
}

// UnmarshalFetchResult decodes a FetchResult. Absent or null input yields nil, meaning never fetched.
func UnmarshalFetchResult(data []byte) (FetchResult, error) {
	if isNull(data) {
		return nil, nil
	}

	tag, body, err := decodeTag("fetch result", data)
	if err != nil {
		return nil, err
	}
	if tag != fetchedTag && tag != fetchFailedTag {
		return nil, &custom_errors.ErrUnknownVariant{Type: "fetch result", Tag: tag}
	}
	if isNull(body) {
		return nil, fmt.Errorf("decode fetch result: %q variant has no body", tag)
	}

	fields, err := decodeFields("fetch result", body)
	if err != nil {
		return nil, err
	}
	raw, ok := pickField(fields, "timestamp")
	if !ok {
		return nil, fmt.Errorf("decode fetch result: %q variant has no timestamp", tag)
	}
	at, err := decodeTimestamp(raw)
	if err != nil {
		return nil, err
	}

	if tag == fetchedTag {
		return Fetched{At: at}, nil
	}
	msg, err := decodeString(fields, "error")
	if err != nil {
		return nil, err
	}
	return FetchFailed{At: at, Message: msg}, nil
}
