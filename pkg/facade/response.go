package facade

import (
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"

	"github.com/dawidpereira/quetty/pkg/bulk"
	"github.com/dawidpereira/quetty/pkg/servicebus"
	"github.com/dawidpereira/quetty/pkg/stats"
)

// Response is the closed set of results Execute returns, one struct per
// Command variant.
type Response interface{ isResponse() }

type QueueSwitchedResponse struct {
	Queue servicebus.QueueInfo
}

type CurrentQueueResponse struct {
	Queue *servicebus.QueueInfo
}

type QueueStatisticsResponse struct {
	Stats     *stats.QueueStats
	Available bool
}

type MessagesPeekedResponse struct {
	Messages []servicebus.Message
}

type MessagesReceivedResponse struct {
	Messages []*azservicebus.ReceivedMessage
}

type MessageCompletedResponse struct{}
type MessageAbandonedResponse struct{}
type MessageDeadLetteredResponse struct{}

// BulkOperationResponse reports the outcome of any bulk command, plus the
// operation id Execute assigned so CancelOperationCommand can target it, and
// whether the order-is-not-guaranteed warning applies.
type BulkOperationResponse struct {
	OperationID uuid.UUID
	Result      *bulk.BulkOperationResult
	OrderWarned bool
}

type MessageSentResponse struct{}
type MessagesSentResponse struct{}

type ConnectionStatusResponse struct {
	ConsumerReady bool
	CurrentQueue  *servicebus.QueueInfo
}

type ConsumerDisposedResponse struct{}
type AllResourcesDisposedResponse struct{}
type ConnectionResetResponse struct{}
type OperationCancelledResponse struct{}

func (QueueSwitchedResponse) isResponse()       {}
func (CurrentQueueResponse) isResponse()        {}
func (QueueStatisticsResponse) isResponse()     {}
func (MessagesPeekedResponse) isResponse()      {}
func (MessagesReceivedResponse) isResponse()    {}
func (MessageCompletedResponse) isResponse()    {}
func (MessageAbandonedResponse) isResponse()    {}
func (MessageDeadLetteredResponse) isResponse() {}
func (BulkOperationResponse) isResponse()       {}
func (MessageSentResponse) isResponse()         {}
func (MessagesSentResponse) isResponse()        {}
func (ConnectionStatusResponse) isResponse()    {}
func (ConsumerDisposedResponse) isResponse()    {}
func (AllResourcesDisposedResponse) isResponse() {}
func (ConnectionResetResponse) isResponse()     {}
func (OperationCancelledResponse) isResponse()  {}
