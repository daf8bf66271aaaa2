package xbee

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// NodeDescriptor ND 响应中的单个节点
type NodeDescriptor struct {
	NetworkAddress       uint16     `json:"network_addr"`
	Address              Address    `json:"address"`
	NodeIdentifier       string     `json:"node_identifier"`
	ParentNetworkAddress uint16     `json:"parent_network_addr"`
	DeviceType           DeviceType `json:"device_type"`
	Status               byte       `json:"status"`
	ProfileID            uint16     `json:"profile_id"`
	ManufacturerID       uint16     `json:"manufacturer_id"`
}

// ND 载荷布局：MY(2) + SH/SL(8) + NI(以 0x00 结尾) + PARENT(2) + TYPE(1) + STATUS(1) + PROFILE(2) + MFG(2)
const (
	ndAddressOffset = 2
	ndLabelOffset   = 10
	ndTrailerLen    = 8
)

// ParseNodeDescriptor 解析 ND 响应数据区（状态字节之后）
// NI 为变长，通过扫描终止符确定；终止符之后的固定字段缺失时报 ErrShortFrame，
// 尾部多余的可选字段忽略
func ParseNodeDescriptor(data []byte) (NodeDescriptor, error) {
	if len(data) < ndLabelOffset+1 {
		return NodeDescriptor{}, fmt.Errorf("node descriptor: %w", ErrShortFrame)
	}
	end := bytes.IndexByte(data[ndLabelOffset:], 0x00)
	if end < 0 {
		return NodeDescriptor{}, fmt.Errorf("node descriptor: unterminated identifier: %w", ErrShortFrame)
	}
	end += ndLabelOffset
	t := data[end+1:]
	if len(t) < ndTrailerLen {
		return NodeDescriptor{}, fmt.Errorf("node descriptor: %w", ErrShortFrame)
	}
	return NodeDescriptor{
		NetworkAddress:       binary.BigEndian.Uint16(data[0:2]),
		Address:              readAddress(data[ndAddressOffset:ndLabelOffset]),
		NodeIdentifier:       string(data[ndLabelOffset:end]),
		ParentNetworkAddress: binary.BigEndian.Uint16(t[0:2]),
		DeviceType:           DeviceType(t[2]),
		Status:               t[3],
		ProfileID:            binary.BigEndian.Uint16(t[4:6]),
		ManufacturerID:       binary.BigEndian.Uint16(t[6:8]),
	}, nil
}

// AppendNodeDescriptor 按 ND 布局编码节点（模拟器与测试使用）
func AppendNodeDescriptor(b []byte, n NodeDescriptor) []byte {
	b = binary.BigEndian.AppendUint16(b, n.NetworkAddress)
	b = appendAddress(b, n.Address)
	b = append(b, n.NodeIdentifier...)
	b = append(b, 0x00)
	b = binary.BigEndian.AppendUint16(b, n.ParentNetworkAddress)
	b = append(b, byte(n.DeviceType), n.Status)
	b = binary.BigEndian.AppendUint16(b, n.ProfileID)
	return binary.BigEndian.AppendUint16(b, n.ManufacturerID)
}

// ParseDiscoveryTimeout 解析 NT 值（大端，单位 100ms）
func ParseDiscoveryTimeout(data []byte) (time.Duration, error) {
	if len(data) == 0 || len(data) > 4 {
		return 0, fmt.Errorf("discovery timeout: %w", ErrShortFrame)
	}
	var v uint32
	for _, b := range data {
		v = v<<8 | uint32(b)
	}
	return time.Duration(v) * DiscoveryTimeoutUnitMs * time.Millisecond, nil
}

// EncodeDiscoveryTimeout 将时长编码为 NT 参数（2 字节大端，向下取整到 100ms）
func EncodeDiscoveryTimeout(d time.Duration) ([]byte, error) {
	units := d / (DiscoveryTimeoutUnitMs * time.Millisecond)
	if units <= 0 || units > 0xFFFF {
		return nil, fmt.Errorf("discovery timeout %s out of range", d)
	}
	return []byte{byte(units >> 8), byte(units)}, nil
}
