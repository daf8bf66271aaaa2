package radio

import (
	"time"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// EventKind 事件类型
type EventKind string

const (
	EventOpen              EventKind = "open"
	EventClosed            EventKind = "closed"
	EventTransportError    EventKind = "transport_error"
	EventDiagnostic        EventKind = "diagnostic"
	EventMessageReceived   EventKind = "message_received"
	EventModemStatus       EventKind = "modem_status"
	EventTransmitStatus    EventKind = "transmit_status"
	EventCommandResponse   EventKind = "command_response"
	EventNodeDiscovered    EventKind = "node_discovered"
	EventDiscoveryComplete EventKind = "discovery_complete"
)

// Message 收到的数据包
type Message struct {
	Source    xbee.Address `json:"source"`
	Broadcast bool         `json:"broadcast"`
	Data      []byte       `json:"data"`
}

// TransmitResult 发送状态
type TransmitResult struct {
	FrameID         uint8               `json:"frame_id"`
	Retries         uint8               `json:"retries"`
	Delivery        xbee.DeliveryStatus `json:"delivery"`
	DiscoveryNeeded bool                `json:"discovery_needed"`
}

// Delivered 是否投递成功
func (r TransmitResult) Delivered() bool { return r.Delivery == xbee.DeliverySuccess }

// CommandResult 本地 AT 命令响应
type CommandResult struct {
	FrameID uint8         `json:"frame_id"`
	Command string        `json:"command"`
	Status  xbee.ATStatus `json:"status"`
	Data    []byte        `json:"data,omitempty"`
}

// Event 事件流中的一项
type Event struct {
	ID      string    `json:"id"`
	Kind    EventKind `json:"kind"`
	Time    time.Time `json:"time"`
	FrameID uint8     `json:"frame_id,omitempty"`

	Message     *Message              `json:"message,omitempty"`
	ModemStatus *xbee.ModemStatusCode `json:"modem_status,omitempty"`
	Transmit    *TransmitResult       `json:"transmit,omitempty"`
	Command     *CommandResult        `json:"command,omitempty"`
	Node        *xbee.NodeDescriptor  `json:"node,omitempty"`
	Nodes       []xbee.NodeDescriptor `json:"nodes,omitempty"`

	// Diagnostic 诊断分类，仅 EventDiagnostic
	Diagnostic string `json:"diagnostic,omitempty"`
	// Detail 状态码的可读描述
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}
