package xbee

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Address 64 位设备地址（SH+SL）
type Address uint64

// BroadcastAddress 广播地址
const BroadcastAddress Address = 0x000000000000FFFF

// String 16 位十六进制，小写，补零
func (a Address) String() string {
	return fmt.Sprintf("%016x", uint64(a))
}

// IsBroadcast 判断是否为广播地址
func (a Address) IsBroadcast() bool { return a == BroadcastAddress }

// MarshalText 以十六进制文本输出，便于 JSON
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 解析十六进制文本
func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAddress 解析十六进制地址，允许 0x 前缀与空格/冒号分隔
// "broadcast" 返回广播地址
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "broadcast" {
		return BroadcastAddress, nil
	}
	s = strings.TrimPrefix(s, "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	if s == "" || len(s) > 16 {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}

func readAddress(b []byte) Address {
	return Address(binary.BigEndian.Uint64(b))
}

func appendAddress(b []byte, a Address) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(a))
}
