package xbee

import "errors"

var (
	// ErrChecksumMismatch 校验和不匹配
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Checksum 计算 API 帧校验和
// 对 type 到 payload 末尾的所有字节累加，取 0xFF 减去低 8 位
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return 0xFF - sum
}

// VerifyChecksum 验证校验和
// dataWithChecksum: type 到校验和（含）的完整字节
// 合法帧满足 sum(data) + checksum ≡ 0xFF (mod 256)
func VerifyChecksum(dataWithChecksum []byte) error {
	if len(dataWithChecksum) < 1 {
		return errors.New("data too short for checksum verification")
	}
	pos := len(dataWithChecksum) - 1
	if dataWithChecksum[pos] != Checksum(dataWithChecksum[:pos]) {
		return ErrChecksumMismatch
	}
	return nil
}
