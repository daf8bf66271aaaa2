package xbee

// API 帧格式常量
// 格式：0x7E(1) + len(2, 大端) + type(1) + payload(var) + checksum(1)
// len 覆盖 type 到 payload 末尾，不含起始符、长度字段与校验和
const (
	StartDelimiter = 0x7E

	// 起始符 + 长度(2) + 校验和
	FrameOverhead = 4

	// 最大帧长度（长度字段上限 + 开销）
	MaxFrameLength = 0xFFFF + FrameOverhead
)

// FrameType API 帧类型标签
type FrameType byte

const (
	FrameATCommand               FrameType = 0x08
	FrameATCommandResponse       FrameType = 0x88
	FrameRemoteATCommand         FrameType = 0x17
	FrameRemoteATCommandResponse FrameType = 0x97
	FrameModemStatus             FrameType = 0x8A
	FrameTransmitRequest         FrameType = 0x10
	FrameTransmitStatus          FrameType = 0x8B
	FrameReceivePacket           FrameType = 0x90
)

func (t FrameType) String() string {
	switch t {
	case FrameATCommand:
		return "at_command"
	case FrameATCommandResponse:
		return "at_command_response"
	case FrameRemoteATCommand:
		return "remote_at_command"
	case FrameRemoteATCommandResponse:
		return "remote_at_command_response"
	case FrameModemStatus:
		return "modem_status"
	case FrameTransmitRequest:
		return "transmit_request"
	case FrameTransmitStatus:
		return "transmit_status"
	case FrameReceivePacket:
		return "receive_packet"
	default:
		return "unknown"
	}
}

// 16 位网络地址占位：DigiMesh 下固定为 0xFFFE
const UnknownNetworkAddress uint16 = 0xFFFE

// 接收选项位
const (
	ReceiveOptionAcked     byte = 0x01
	ReceiveOptionBroadcast byte = 0x02
)

// ATStatus AT 命令响应状态
type ATStatus byte

const (
	ATStatusOK               ATStatus = 0x00
	ATStatusError            ATStatus = 0x01
	ATStatusInvalidCommand   ATStatus = 0x02
	ATStatusInvalidParameter ATStatus = 0x03
)

// DeliveryStatus 发送状态码（Transmit Status 帧）
type DeliveryStatus byte

const (
	DeliverySuccess           DeliveryStatus = 0x00
	DeliveryMACAckFailure     DeliveryStatus = 0x01
	DeliveryCCAFailure        DeliveryStatus = 0x02
	DeliveryInvalidEndpoint   DeliveryStatus = 0x15
	DeliveryNetworkAckFailure DeliveryStatus = 0x21
	DeliveryNotJoined         DeliveryStatus = 0x22
	DeliverySelfAddressed     DeliveryStatus = 0x23
	DeliveryAddressNotFound   DeliveryStatus = 0x24
	DeliveryRouteNotFound     DeliveryStatus = 0x25
	DeliveryPayloadTooLarge   DeliveryStatus = 0x74
)

// ModemStatusCode 模块状态码（Modem Status 帧，非请求）
type ModemStatusCode byte

const (
	ModemHardwareReset ModemStatusCode = 0x00
	ModemWatchdogReset ModemStatusCode = 0x01
	ModemNetworkWoke   ModemStatusCode = 0x0B
	ModemNetworkAsleep ModemStatusCode = 0x0C
)

// DeviceType ND 响应中的设备类型
type DeviceType byte

const (
	DeviceCoordinator DeviceType = 0x00
	DeviceRouter      DeviceType = 0x01
	DeviceEndDevice   DeviceType = 0x02
)

func (d DeviceType) String() string {
	switch d {
	case DeviceCoordinator:
		return "coordinator"
	case DeviceRouter:
		return "router"
	case DeviceEndDevice:
		return "end_device"
	default:
		return "unknown"
	}
}

// 本地 AT 命令助记符
const (
	CmdNodeIdentifier   = "NI"
	CmdDiscoveryTimeout = "NT"
	CmdNodeDiscover     = "ND"
)

// NT 参数单位
const DiscoveryTimeoutUnitMs = 100
