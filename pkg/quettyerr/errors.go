// Package quettyerr defines the error taxonomy shared by every Service Bus
// access core component: auth, management client, consumer/producer manager,
// and the bulk operation engine all return errors from this package rather
// than raw wrapped stdlib errors, so the command façade can map them to
// user-facing responses by type rather than by string matching.
package quettyerr

import "fmt"

// ConfigurationError reports missing or malformed configuration: a missing
// connection string, tenant id, client secret, and the like.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// AuthenticationError reports that authentication is not currently possible,
// distinct from AuthenticationFailed: the provider has not yet said no, it is
// simply not in a state where a token can be produced (e.g. a device-code
// flow is in progress).
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

// AuthenticationFailed reports that an authentication attempt was made and
// the provider rejected it. Distinct from AuthenticationError because retry
// is plausible here.
type AuthenticationFailed struct {
	Reason string
}

func (e *AuthenticationFailed) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// AzureAPIError is the structured wrapper for management-plane failures.
type AzureAPIError struct {
	Operation  string
	HTTPStatus int
	AzureCode  string
	Message    string
	RequestID  string
}

func (e *AzureAPIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("azure api error during %s: status=%d code=%s message=%s request_id=%s",
			e.Operation, e.HTTPStatus, e.AzureCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("azure api error during %s: status=%d code=%s message=%s",
		e.Operation, e.HTTPStatus, e.AzureCode, e.Message)
}

// ConnectionFailed reports a network or AMQP link failure.
type ConnectionFailed struct {
	Reason string
}

func (e *ConnectionFailed) Error() string {
	return fmt.Sprintf("connection failed: %s", e.Reason)
}

// OperationTimeout reports a local timeout. RateLimited is set when the
// timeout is believed to be caused by broker-side throttling.
type OperationTimeout struct {
	Operation   string
	RateLimited bool
}

func (e *OperationTimeout) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("operation timeout (rate limited): %s", e.Operation)
	}
	return fmt.Sprintf("operation timeout: %s", e.Operation)
}

// ConsumerNotFound reports that a command requiring a bound queue was issued
// before SwitchQueue.
type ConsumerNotFound struct{}

func (e *ConsumerNotFound) Error() string {
	return "no consumer bound to a queue; call SwitchQueue first"
}

// MessageReceiveFailed reports that the broker rejected a receive/peek call.
type MessageReceiveFailed struct {
	Reason string
}

func (e *MessageReceiveFailed) Error() string {
	return fmt.Sprintf("message receive failed: %s", e.Reason)
}

// MessageCompleteFailed reports that the broker rejected a complete disposition.
type MessageCompleteFailed struct {
	Reason string
}

func (e *MessageCompleteFailed) Error() string {
	return fmt.Sprintf("message complete failed: %s", e.Reason)
}

// MessageAbandonFailed reports that the broker rejected an abandon disposition.
type MessageAbandonFailed struct {
	Reason string
}

func (e *MessageAbandonFailed) Error() string {
	return fmt.Sprintf("message abandon failed: %s", e.Reason)
}

// MessageDeadLetterFailed reports that the broker rejected a dead-letter disposition.
type MessageDeadLetterFailed struct {
	Reason string
}

func (e *MessageDeadLetterFailed) Error() string {
	return fmt.Sprintf("message dead-letter failed: %s", e.Reason)
}

// Unsupported reports that an operation cannot be performed at all, e.g. copy
// to the dead-letter queue. Message should name the alternative operation.
type Unsupported struct {
	Message string
}

func (e *Unsupported) Error() string {
	return e.Message
}

// InternalError is the catch-all for anything unclassified.
type InternalError struct {
	Debug string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Debug)
}

// MaxRetriesExceeded reports that a bounded retry loop (token refresh) ran out
// of attempts.
type MaxRetriesExceeded struct {
	Attempts int
	Last     error
}

func (e *MaxRetriesExceeded) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Last)
}

func (e *MaxRetriesExceeded) Unwrap() error {
	return e.Last
}
