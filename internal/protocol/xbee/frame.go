package xbee

// Frame 已解码的 API 帧（值语义，解码后不再修改）
type Frame interface {
	// FrameType 类型标签
	FrameType() FrameType
	// ID 帧 ID；0 表示不需要响应，非请求类帧恒为 0
	ID() uint8

	appendPayload(b []byte) ([]byte, error)
}

// ATCommand 本地 AT 命令（0x08）
type ATCommand struct {
	FrameID   uint8
	Command   string
	Parameter []byte
}

func (f ATCommand) FrameType() FrameType { return FrameATCommand }
func (f ATCommand) ID() uint8            { return f.FrameID }

func (f ATCommand) appendPayload(b []byte) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}
	b = append(b, f.FrameID)
	b = append(b, f.Command...)
	return append(b, f.Parameter...), nil
}

// ATCommandResponse 本地 AT 命令响应（0x88）
type ATCommandResponse struct {
	FrameID uint8
	Command string
	Status  ATStatus
	Data    []byte
}

func (f ATCommandResponse) FrameType() FrameType { return FrameATCommandResponse }
func (f ATCommandResponse) ID() uint8            { return f.FrameID }

func (f ATCommandResponse) appendPayload(b []byte) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}
	b = append(b, f.FrameID)
	b = append(b, f.Command...)
	b = append(b, byte(f.Status))
	return append(b, f.Data...), nil
}

// OK 状态是否成功
func (f ATCommandResponse) OK() bool { return f.Status == ATStatusOK }

// RemoteATCommand 远程 AT 命令（0x17）
type RemoteATCommand struct {
	FrameID        uint8
	Destination    Address
	NetworkAddress uint16
	Options        byte
	Command        string
	Parameter      []byte
}

func (f RemoteATCommand) FrameType() FrameType { return FrameRemoteATCommand }
func (f RemoteATCommand) ID() uint8            { return f.FrameID }

func (f RemoteATCommand) appendPayload(b []byte) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}
	b = append(b, f.FrameID)
	b = appendAddress(b, f.Destination)
	b = append(b, byte(f.NetworkAddress>>8), byte(f.NetworkAddress))
	b = append(b, f.Options)
	b = append(b, f.Command...)
	return append(b, f.Parameter...), nil
}

// RemoteATCommandResponse 远程 AT 命令响应（0x97）
type RemoteATCommandResponse struct {
	FrameID        uint8
	Source         Address
	NetworkAddress uint16
	Command        string
	Status         ATStatus
	Data           []byte
}

func (f RemoteATCommandResponse) FrameType() FrameType { return FrameRemoteATCommandResponse }
func (f RemoteATCommandResponse) ID() uint8            { return f.FrameID }

func (f RemoteATCommandResponse) appendPayload(b []byte) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}
	b = append(b, f.FrameID)
	b = appendAddress(b, f.Source)
	b = append(b, byte(f.NetworkAddress>>8), byte(f.NetworkAddress))
	b = append(b, f.Command...)
	b = append(b, byte(f.Status))
	return append(b, f.Data...), nil
}

// ModemStatus 模块状态（0x8A，非请求）
type ModemStatus struct {
	Status ModemStatusCode
}

func (f ModemStatus) FrameType() FrameType { return FrameModemStatus }
func (f ModemStatus) ID() uint8            { return 0 }

func (f ModemStatus) appendPayload(b []byte) ([]byte, error) {
	return append(b, byte(f.Status)), nil
}

// TransmitRequest 发送请求（0x10）
// Broadcast 为 true 时线上地址固定为 BroadcastAddress。
// 线上只有地址、没有广播标志，解码得到的总是 Normalized 形式
type TransmitRequest struct {
	FrameID         uint8
	Destination     Address
	Broadcast       bool
	BroadcastRadius byte
	Options         byte
	Data            []byte
}

func (f TransmitRequest) FrameType() FrameType { return FrameTransmitRequest }
func (f TransmitRequest) ID() uint8            { return f.FrameID }

func (f TransmitRequest) appendPayload(b []byte) ([]byte, error) {
	dest := f.Destination
	if f.Broadcast {
		dest = BroadcastAddress
	}
	b = append(b, f.FrameID)
	b = appendAddress(b, dest)
	b = append(b, byte(UnknownNetworkAddress>>8), byte(UnknownNetworkAddress&0xFF))
	b = append(b, f.BroadcastRadius, f.Options)
	return append(b, f.Data...), nil
}

// Normalized 返回与线上编码一一对应的形式：
// Broadcast 与 Destination == BroadcastAddress 互相蕴含
func (f TransmitRequest) Normalized() TransmitRequest {
	if f.Broadcast || f.Destination == BroadcastAddress {
		f.Broadcast = true
		f.Destination = BroadcastAddress
	}
	return f
}

// TransmitStatus 发送状态（0x8B）
type TransmitStatus struct {
	FrameID        uint8
	NetworkAddress uint16
	Retries        uint8
	Delivery       DeliveryStatus
	Discovery      byte
}

func (f TransmitStatus) FrameType() FrameType { return FrameTransmitStatus }
func (f TransmitStatus) ID() uint8            { return f.FrameID }

func (f TransmitStatus) appendPayload(b []byte) ([]byte, error) {
	b = append(b, f.FrameID)
	b = append(b, byte(f.NetworkAddress>>8), byte(f.NetworkAddress))
	return append(b, f.Retries, byte(f.Delivery), f.Discovery), nil
}

// Delivered 是否投递成功
func (f TransmitStatus) Delivered() bool { return f.Delivery == DeliverySuccess }

// DiscoveryNeeded 网络是否为此次发送重新发现了路由
func (f TransmitStatus) DiscoveryNeeded() bool { return f.Discovery != 0 }

// ReceivePacket 接收数据（0x90，非请求）
type ReceivePacket struct {
	Source         Address
	NetworkAddress uint16
	Options        byte
	Data           []byte
}

func (f ReceivePacket) FrameType() FrameType { return FrameReceivePacket }
func (f ReceivePacket) ID() uint8            { return 0 }

func (f ReceivePacket) appendPayload(b []byte) ([]byte, error) {
	b = appendAddress(b, f.Source)
	b = append(b, byte(f.NetworkAddress>>8), byte(f.NetworkAddress))
	b = append(b, f.Options)
	return append(b, f.Data...), nil
}

// Broadcast 是否为广播包
func (f ReceivePacket) Broadcast() bool { return f.Options&ReceiveOptionBroadcast != 0 }

func validateCommand(cmd string) error {
	if len(cmd) != 2 {
		return ErrInvalidCommand
	}
	for i := 0; i < 2; i++ {
		if cmd[i] < 0x20 || cmd[i] > 0x7E {
			return ErrInvalidCommand
		}
	}
	return nil
}
