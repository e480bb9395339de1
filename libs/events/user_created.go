package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// TopicUserCreated carries one message per committed user creation, keyed by
// the user id. Ordering is only guaranteed per key; consumers must apply
// messages idempotently.
const TopicUserCreated = "user.created.v1"

// ErrMalformedEvent classifies undecodable or incomplete broker payloads.
// Consumers report and skip these, they never stop consumption.
var ErrMalformedEvent = errors.New("malformed event")

// UserCreated is a snapshot of a user record taken at creation time.
// Users are immutable once published, so the payload never goes stale.
type UserCreated struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (e UserCreated) Key() []byte {
	return []byte(strconv.FormatInt(e.ID, 10))
}

func (e UserCreated) Encode() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeUserCreated decodes a broker payload into a UserCreated event.
// Unknown fields and missing required fields both classify as malformed:
// a partially initialized record must never reach the replica cache.
func DecodeUserCreated(data []byte) (UserCreated, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var e UserCreated
	if err := dec.Decode(&e); err != nil {
		return UserCreated{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if dec.More() {
		return UserCreated{}, fmt.Errorf("%w: trailing data after payload", ErrMalformedEvent)
	}
	if err := e.validate(); err != nil {
		return UserCreated{}, err
	}
	return e, nil
}

func (e UserCreated) validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrMalformedEvent)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrMalformedEvent)
	}
	if e.Email == "" {
		return fmt.Errorf("%w: email is required", ErrMalformedEvent)
	}
	return nil
}
