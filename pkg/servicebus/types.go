// Package servicebus holds the core data model and the consumer/producer
// manager that sit directly on top of the Azure Service Bus SDK: message
// representation, queue naming, and the single-receiver-per-queue manager
// bulk operations and the command façade both depend on.
package servicebus

import (
	"encoding/json"
	"strings"
	"time"
)

// deadLetterSuffix is the fixed suffix Azure Service Bus uses to address a
// queue's companion dead-letter queue. The canonical convention for this
// module is full-path-with-suffix everywhere at the core boundary: every
// QueueInfo passed across a component boundary already carries the suffix
// when it refers to a dead-letter queue.
const deadLetterSuffix = "/$deadletterqueue"

// QueueType distinguishes a queue from its dead-letter companion.
type QueueType int

const (
	// Main identifies a queue's primary, user-facing message stream.
	Main QueueType = iota
	// DeadLetter identifies a queue's dead-letter companion.
	DeadLetter
)

func (t QueueType) String() string {
	if t == DeadLetter {
		return "DeadLetter"
	}
	return "Main"
}

// QueueInfo pairs a queue's full name with its type. Dead-letter queues are
// named "<base>/$deadletterqueue"; converting between main and DLQ strips or
// appends exactly that suffix.
type QueueInfo struct {
	Name string
	Type QueueType
}

// NewMainQueue builds a QueueInfo for a queue's primary stream.
func NewMainQueue(name string) QueueInfo {
	return QueueInfo{Name: name, Type: Main}
}

// NewDeadLetterQueue builds a QueueInfo for name's dead-letter companion,
// appending the suffix if the caller passed a bare base name.
func NewDeadLetterQueue(name string) QueueInfo {
	if strings.HasSuffix(name, deadLetterSuffix) {
		return QueueInfo{Name: name, Type: DeadLetter}
	}
	return QueueInfo{Name: name + deadLetterSuffix, Type: DeadLetter}
}

// QueueTypeFromName classifies a full queue name by suffix match.
func QueueTypeFromName(name string) QueueType {
	if strings.HasSuffix(name, deadLetterSuffix) {
		return DeadLetter
	}
	return Main
}

// BaseName strips the dead-letter suffix if present, returning the queue's
// base (main-queue) name either way.
func (q QueueInfo) BaseName() string {
	if strings.HasSuffix(q.Name, deadLetterSuffix) {
		return strings.TrimSuffix(q.Name, deadLetterSuffix)
	}
	return q.Name
}

// ToDLQ returns the QueueInfo for this queue's dead-letter companion.
func (q QueueInfo) ToDLQ() QueueInfo {
	return NewDeadLetterQueue(q.BaseName())
}

// ToMain returns the QueueInfo for this queue's main stream.
func (q QueueInfo) ToMain() QueueInfo {
	return NewMainQueue(q.BaseName())
}

// MessageState records a message's lifecycle. Active/Deferred/Scheduled name
// the states the Azure SDK itself reports on receive; Completed, Abandoned,
// and DeadLettered name post-disposition states. Messages converted by
// ConsumerManager are always reported as Active: the SDK's own state is not
// read, and no disposition call updates a Message's State.
type MessageState int

const (
	Active MessageState = iota
	Deferred
	Scheduled
	DeadLettered
	Completed
	Abandoned
)

func (s MessageState) String() string {
	switch s {
	case Deferred:
		return "Deferred"
	case Scheduled:
		return "Scheduled"
	case DeadLettered:
		return "DeadLettered"
	case Completed:
		return "Completed"
	case Abandoned:
		return "Abandoned"
	default:
		return "Active"
	}
}

// BodyData is a message body that is either valid JSON or an opaque string
// (including invalid JSON, UTF-8-lossy-converted for display).
type BodyData interface {
	isBodyData()
	MarshalJSON() ([]byte, error)
}

// JSONBody wraps a message body successfully parsed as JSON.
type JSONBody struct {
	Value any
}

func (JSONBody) isBodyData() {}

// MarshalJSON serializes the underlying value directly: JSON bodies are
// emitted bare, not nested under a tagged wrapper.
func (b JSONBody) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value)
}

// RawBody wraps a message body that is not valid JSON, decoded UTF-8-lossy.
type RawBody struct {
	Text string
}

func (RawBody) isBodyData() {}

// MarshalJSON serializes the raw text as a bare JSON string.
func (b RawBody) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Text)
}

// ParseBody attempts to parse raw as JSON first, falling back to a
// UTF-8-lossy raw string if that fails.
func ParseBody(raw []byte) BodyData {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return JSONBody{Value: v}
	}
	return RawBody{Text: string(raw)}
}

// MessageIdentifier names a message across bulk operations. Two identifiers
// compare equal iff both fields match; the same id may appear twice with
// different sequences and must be treated as distinct.
type MessageIdentifier struct {
	ID       string
	Sequence int64
}

// Message represents a Service Bus message with all its metadata and
// content, as peeked or received from a queue.
type Message struct {
	Sequence      int64
	ID            string
	EnqueuedAt    time.Time
	DeliveryCount uint32
	State         MessageState
	Body          BodyData
}

// Identifier returns this message's (id, sequence) pair.
func (m Message) Identifier() MessageIdentifier {
	return MessageIdentifier{ID: m.ID, Sequence: m.Sequence}
}

// MessageData is a constructible message to be sent, distinct from the
// received-message Message type above.
type MessageData struct {
	Body       []byte
	Properties map[string]any
}

// NewTextMessage builds a MessageData whose body is the given text.
func NewTextMessage(text string) MessageData {
	return MessageData{Body: []byte(text)}
}

// NewJSONMessage builds a MessageData whose body is the JSON encoding of v.
func NewJSONMessage(v any) (MessageData, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return MessageData{}, err
	}
	return MessageData{Body: b}, nil
}

// WithProperties returns a copy of m with its application properties set.
func (m MessageData) WithProperties(props map[string]any) MessageData {
	m.Properties = props
	return m
}

// OperationStats tracks successful/failed/total counters for a completed
// operation, e.g. the last bulk operation an Engine ran.
type OperationStats struct {
	Successful uint64
	Failed     uint64
	Total      uint64
}

// SuccessRate returns Successful/Total, or 0 when Total is 0.
func (s OperationStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}
