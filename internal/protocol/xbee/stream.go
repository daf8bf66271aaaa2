package xbee

// decodeState 流式解码器状态
type decodeState uint8

const (
	stateIdle decodeState = iota
	stateReadingLength
	stateReadingBody
)

func (s decodeState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReadingLength:
		return "reading_length"
	case stateReadingBody:
		return "reading_body"
	default:
		return "unknown"
	}
}

// DecoderStats 解码统计
type DecoderStats struct {
	Frames    uint64 // 校验通过的帧
	Malformed uint64 // 校验失败丢弃的帧
	Oversized uint64 // 超过上限丢弃的帧
	Discarded uint64 // 空闲态下丢弃的非起始字节
}

// StreamDecoder 逐字节的 API 帧重组器
// 长度字段自描述，无转义、无回溯：帧内出现 0x7E 只是普通数据
// 非并发安全，每个连接一个实例，由读循环独占
type StreamDecoder struct {
	state       decodeState
	buf         []byte
	target      int
	maxFrameLen int
	stats       DecoderStats
}

// NewStreamDecoder 创建流式解码器
// maxFrameLen <= 0 表示只受 16 位长度字段限制
func NewStreamDecoder(maxFrameLen int) *StreamDecoder {
	if maxFrameLen <= 0 || maxFrameLen > MaxFrameLength {
		maxFrameLen = MaxFrameLength
	}
	return &StreamDecoder{buf: make([]byte, 0, 256), maxFrameLen: maxFrameLen}
}

// Push 输入一个字节
// 完成一帧且校验通过时返回帧体（type + payload，已去掉校验和，调用方持有）；
// 校验失败返回 ErrMalformedFrame，超长返回 ErrFrameTooLarge。
// 出错后解码器总是回到空闲态，可以继续输入
func (d *StreamDecoder) Push(c byte) ([]byte, error) {
	switch d.state {
	case stateIdle:
		if c != StartDelimiter {
			d.stats.Discarded++
			return nil, nil
		}
		d.buf = append(d.buf[:0], c)
		d.state = stateReadingLength
		return nil, nil

	case stateReadingLength:
		d.buf = append(d.buf, c)
		if len(d.buf) < 3 {
			return nil, nil
		}
		// 起始符 + 长度(2) + 校验和
		d.target = (int(d.buf[1])<<8 | int(d.buf[2])) + FrameOverhead
		if d.target > d.maxFrameLen {
			d.stats.Oversized++
			d.reset()
			return nil, ErrFrameTooLarge
		}
		d.state = stateReadingBody
		return nil, nil

	case stateReadingBody:
		d.buf = append(d.buf, c)
		if len(d.buf) < d.target {
			return nil, nil
		}
		defer d.reset()
		if err := VerifyChecksum(d.buf[3:d.target]); err != nil {
			d.stats.Malformed++
			return nil, ErrMalformedFrame
		}
		d.stats.Frames++
		body := make([]byte, d.target-FrameOverhead)
		copy(body, d.buf[3:d.target-1])
		return body, nil
	}
	d.reset()
	return nil, nil
}

// Feed 批量输入，按线上完成顺序回调每个帧体与每个错误
func (d *StreamDecoder) Feed(p []byte, onFrame func(body []byte), onError func(err error)) {
	for _, c := range p {
		body, err := d.Push(c)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if body != nil && onFrame != nil {
			onFrame(body)
		}
	}
}

// Idle 是否处于空闲态（无半包）
func (d *StreamDecoder) Idle() bool { return d.state == stateIdle }

// Buffered 当前累积的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Stats 返回统计快照
func (d *StreamDecoder) Stats() DecoderStats { return d.stats }

// Reset 丢弃半包，回到空闲态
func (d *StreamDecoder) Reset() { d.reset() }

func (d *StreamDecoder) reset() {
	d.state = stateIdle
	d.buf = d.buf[:0]
	d.target = 0
}
