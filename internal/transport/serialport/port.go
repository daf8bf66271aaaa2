// Package serialport 打开连接 DigiMesh 模块的串口
package serialport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Config 串口参数
type Config struct {
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baudRate"`
	DataBits    int           `mapstructure:"dataBits"`
	Parity      string        `mapstructure:"parity"`   // none | odd | even | mark | space
	StopBits    string        `mapstructure:"stopBits"` // 1 | 1.5 | 2
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// Mode 将配置转换为 serial.Mode
func (c Config) Mode() (*serial.Mode, error) {
	parity, err := parseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	stop, err := parseStopBits(c.StopBits)
	if err != nil {
		return nil, err
	}
	baud := c.BaudRate
	if baud <= 0 {
		baud = 9600
	}
	bits := c.DataBits
	if bits == 0 {
		bits = 8
	}
	if bits < 5 || bits > 8 {
		return nil, fmt.Errorf("serial: invalid data bits %d", bits)
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: bits,
		Parity:   parity,
		StopBits: stop,
	}, nil
}

// Open 打开串口并设置读超时
// 读超时让读循环能周期性地检查 ctx；超时时 Read 返回 (0, nil)
func Open(c Config) (serial.Port, error) {
	if c.Device == "" {
		return nil, fmt.Errorf("serial: device not configured")
	}
	mode, err := c.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(c.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", c.Device, err)
	}
	if c.ReadTimeout > 0 {
		if err := port.SetReadTimeout(c.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("serial: set read timeout: %w", err)
		}
	}
	return port, nil
}

// List 列出可用串口
func List() ([]string, error) {
	return serial.GetPortsList()
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	}
	return 0, fmt.Errorf("serial: invalid parity %q", s)
}

func parseStopBits(s string) (serial.StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	}
	return 0, fmt.Errorf("serial: invalid stop bits %q", s)
}
