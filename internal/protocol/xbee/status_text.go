package xbee

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StatusText 状态码描述表，可由 YAML 覆盖
type StatusText struct {
	Delivery map[int]string `yaml:"delivery"`
	Modem    map[int]string `yaml:"modem"`
	Command  map[int]string `yaml:"command"`
}

// DefaultStatusText 返回默认描述
func DefaultStatusText() *StatusText {
	return &StatusText{
		Delivery: map[int]string{
			int(DeliverySuccess):           "success",
			int(DeliveryMACAckFailure):     "MAC ACK failure",
			int(DeliveryCCAFailure):        "CCA failure",
			int(DeliveryInvalidEndpoint):   "invalid destination endpoint",
			int(DeliveryNetworkAckFailure): "network ACK failure",
			int(DeliveryNotJoined):         "not joined to network",
			int(DeliverySelfAddressed):     "self-addressed",
			int(DeliveryAddressNotFound):   "address not found",
			int(DeliveryRouteNotFound):     "route not found",
			int(DeliveryPayloadTooLarge):   "payload too large",
		},
		Modem: map[int]string{
			int(ModemHardwareReset): "hardware reset",
			int(ModemWatchdogReset): "watchdog timer reset",
			int(ModemNetworkWoke):   "network woke up",
			int(ModemNetworkAsleep): "network went to sleep",
		},
		Command: map[int]string{
			int(ATStatusOK):               "ok",
			int(ATStatusError):            "error",
			int(ATStatusInvalidCommand):   "invalid command",
			int(ATStatusInvalidParameter): "invalid parameter",
		},
	}
}

// LoadStatusText 从 YAML 文件加载并合并到默认表
func LoadStatusText(path string) (*StatusText, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status text: %w", err)
	}
	var m StatusText
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal status text: %w", err)
	}
	st := DefaultStatusText()
	st.Merge(&m)
	return st, nil
}

// Merge 合并另一张表，同码覆盖
func (t *StatusText) Merge(other *StatusText) {
	if t == nil || other == nil {
		return
	}
	t.Delivery = mergeText(t.Delivery, other.Delivery)
	t.Modem = mergeText(t.Modem, other.Modem)
	t.Command = mergeText(t.Command, other.Command)
}

func mergeText(dst, src map[int]string) map[int]string {
	if dst == nil {
		dst = make(map[int]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// DeliveryText 发送状态描述
func (t *StatusText) DeliveryText(s DeliveryStatus) string {
	return lookupText(t, func(t *StatusText) map[int]string { return t.Delivery }, int(s), "delivery")
}

// ModemText 模块状态描述
func (t *StatusText) ModemText(s ModemStatusCode) string {
	return lookupText(t, func(t *StatusText) map[int]string { return t.Modem }, int(s), "modem")
}

// CommandText AT 状态描述
func (t *StatusText) CommandText(s ATStatus) string {
	return lookupText(t, func(t *StatusText) map[int]string { return t.Command }, int(s), "command")
}

func lookupText(t *StatusText, pick func(*StatusText) map[int]string, code int, kind string) string {
	if t != nil {
		if desc, ok := pick(t)[code]; ok {
			return desc
		}
	}
	return fmt.Sprintf("unknown %s status (0x%02X)", kind, code)
}
