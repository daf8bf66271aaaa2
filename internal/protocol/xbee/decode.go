package xbee

import "encoding/binary"

// 各类型 payload 最小长度（不含 type 字节）
const (
	minATCommand               = 1 + 2
	minATCommandResponse       = 1 + 2 + 1
	minRemoteATCommand         = 1 + 8 + 2 + 1 + 2
	minRemoteATCommandResponse = 1 + 8 + 2 + 2 + 1
	minModemStatus             = 1
	minTransmitRequest         = 1 + 8 + 2 + 1 + 1
	minTransmitStatus          = 1 + 2 + 1 + 1 + 1
	minReceivePacket           = 8 + 2 + 1
)

// Decode 解析已校验的帧体（type + payload）
// 未识别的类型返回 *UnknownFrameTypeError（errors.Is ErrUnknownFrameType）
func Decode(body []byte) (Frame, error) {
	if len(body) == 0 {
		return nil, ErrShortFrame
	}
	t, p := FrameType(body[0]), body[1:]
	switch t {
	case FrameATCommand:
		if len(p) < minATCommand {
			return nil, ErrShortFrame
		}
		return ATCommand{FrameID: p[0], Command: string(p[1:3]), Parameter: clone(p[3:])}, nil

	case FrameATCommandResponse:
		if len(p) < minATCommandResponse {
			return nil, ErrShortFrame
		}
		return ATCommandResponse{
			FrameID: p[0],
			Command: string(p[1:3]),
			Status:  ATStatus(p[3]),
			Data:    clone(p[4:]),
		}, nil

	case FrameRemoteATCommand:
		if len(p) < minRemoteATCommand {
			return nil, ErrShortFrame
		}
		return RemoteATCommand{
			FrameID:        p[0],
			Destination:    readAddress(p[1:9]),
			NetworkAddress: binary.BigEndian.Uint16(p[9:11]),
			Options:        p[11],
			Command:        string(p[12:14]),
			Parameter:      clone(p[14:]),
		}, nil

	case FrameRemoteATCommandResponse:
		if len(p) < minRemoteATCommandResponse {
			return nil, ErrShortFrame
		}
		return RemoteATCommandResponse{
			FrameID:        p[0],
			Source:         readAddress(p[1:9]),
			NetworkAddress: binary.BigEndian.Uint16(p[9:11]),
			Command:        string(p[11:13]),
			Status:         ATStatus(p[13]),
			Data:           clone(p[14:]),
		}, nil

	case FrameModemStatus:
		if len(p) < minModemStatus {
			return nil, ErrShortFrame
		}
		return ModemStatus{Status: ModemStatusCode(p[0])}, nil

	case FrameTransmitRequest:
		if len(p) < minTransmitRequest {
			return nil, ErrShortFrame
		}
		return TransmitRequest{
			FrameID:         p[0],
			Destination:     readAddress(p[1:9]),
			BroadcastRadius: p[11],
			Options:         p[12],
			Data:            clone(p[13:]),
		}.Normalized(), nil

	case FrameTransmitStatus:
		if len(p) < minTransmitStatus {
			return nil, ErrShortFrame
		}
		return TransmitStatus{
			FrameID:        p[0],
			NetworkAddress: binary.BigEndian.Uint16(p[1:3]),
			Retries:        p[3],
			Delivery:       DeliveryStatus(p[4]),
			Discovery:      p[5],
		}, nil

	case FrameReceivePacket:
		if len(p) < minReceivePacket {
			return nil, ErrShortFrame
		}
		return ReceivePacket{
			Source:         readAddress(p[0:8]),
			NetworkAddress: binary.BigEndian.Uint16(p[8:10]),
			Options:        p[10],
			Data:           clone(p[11:]),
		}, nil
	}
	return nil, &UnknownFrameTypeError{Type: body[0]}
}

// clone 复制载荷，避免引用解码器缓冲；空载荷返回 nil
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
