package xbee

import "fmt"

// Body 编码帧体：type(1) + payload，不含起始符、长度与校验和
func Body(f Frame) ([]byte, error) {
	b := make([]byte, 0, 32)
	b = append(b, byte(f.FrameType()))
	return f.appendPayload(b)
}

// Encode 将帧编码为完整线上字节
// 0x7E + len(2) + body + checksum
func Encode(f Frame) ([]byte, error) {
	body, err := Body(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.FrameType(), err)
	}
	return Wrap(body)
}

// Wrap 为帧体加上起始符、长度与校验和
func Wrap(body []byte) ([]byte, error) {
	if len(body) > 0xFFFF {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, len(body)+FrameOverhead)
	buf = append(buf, StartDelimiter, byte(len(body)>>8), byte(len(body)))
	buf = append(buf, body...)
	return append(buf, Checksum(body)), nil
}

// EncodeATCommand 构造本地 AT 命令帧
func EncodeATCommand(frameID uint8, command string, parameter []byte) ([]byte, error) {
	return Encode(ATCommand{FrameID: frameID, Command: command, Parameter: parameter})
}

// EncodeTransmitRequest 构造发送请求帧；broadcast 为 true 时忽略 dest
func EncodeTransmitRequest(frameID uint8, dest Address, broadcast bool, data []byte) ([]byte, error) {
	return Encode(TransmitRequest{FrameID: frameID, Destination: dest, Broadcast: broadcast, Data: data})
}

// EncodeDiscoveryRequest 构造 ND（节点发现）命令帧
func EncodeDiscoveryRequest(frameID uint8) ([]byte, error) {
	return EncodeATCommand(frameID, CmdNodeDiscover, nil)
}
