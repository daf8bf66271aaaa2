package radio

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/xbee-digimesh/internal/correlation"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// 登记项标签：决定 AT 响应的解析方式
const (
	labelTransmit    = "transmit"
	labelPassthrough = "at"
)

func (r *Radio) registerHandlers() {
	r.router.Register(xbee.FrameTransmitStatus, r.handleTransmitStatus)
	r.router.Register(xbee.FrameATCommandResponse, r.handleCommandResponse)
	r.router.Register(xbee.FrameReceivePacket, r.handleReceivePacket)
	r.router.Register(xbee.FrameModemStatus, r.handleModemStatus)
	r.router.Register(xbee.FrameRemoteATCommandResponse, r.handleRemoteCommandResponse)
}

func (r *Radio) handleTransmitStatus(f xbee.Frame) error {
	st := f.(xbee.TransmitStatus)
	res := TransmitResult{
		FrameID:         st.FrameID,
		Retries:         st.Retries,
		Delivery:        st.Delivery,
		DiscoveryNeeded: st.DiscoveryNeeded(),
	}
	if !res.Delivered() {
		r.log.Info("transmit not delivered",
			zap.Uint8("frame_id", st.FrameID),
			zap.String("delivery", r.text.DeliveryText(st.Delivery)),
			zap.Uint8("retries", st.Retries))
	}
	if _, err := r.table.Resolve(st.FrameID, res); err != nil {
		return err
	}
	return nil
}

func (r *Radio) handleCommandResponse(f xbee.Frame) error {
	resp := f.(xbee.ATCommandResponse)
	entry, ok := r.table.Lookup(resp.FrameID)
	if !ok {
		return fmt.Errorf("%w: %d (%s)", ErrOrphanResponse, resp.FrameID, resp.Command)
	}
	if entry.Mode == correlation.Accumulating {
		return r.handleDiscoveryResponse(resp)
	}

	res := CommandResult{FrameID: resp.FrameID, Command: resp.Command, Status: resp.Status, Data: resp.Data}
	if !resp.OK() {
		r.log.Info("AT command rejected",
			zap.String("command", resp.Command),
			zap.String("status", r.text.CommandText(resp.Status)))
		return r.table.Fail(resp.FrameID, &xbee.CommandError{Command: resp.Command, Status: resp.Status})
	}

	switch resp.Command {
	case xbee.CmdNodeIdentifier:
	case xbee.CmdDiscoveryTimeout:
		// 查询响应带当前值；设置成功的响应不带数据，取请求参数
		value := resp.Data
		if len(value) == 0 {
			value = entry.Parameter
		}
		if len(value) > 0 {
			d, err := xbee.ParseDiscoveryTimeout(value)
			if err != nil {
				r.diagnose(classify(err), err, zap.String("command", resp.Command))
			} else {
				r.setDiscoveryDefault(d)
			}
		}
	default:
		if entry.Label != labelPassthrough {
			err := fmt.Errorf("%w: %s", xbee.ErrUnhandledCommandResponse, resp.Command)
			r.diagnose(DiagUnhandledCommand, err, zap.Uint8("frame_id", resp.FrameID))
		}
	}
	_, err := r.table.Resolve(resp.FrameID, res)
	return err
}

func (r *Radio) handleDiscoveryResponse(resp xbee.ATCommandResponse) error {
	if !resp.OK() {
		err := &xbee.CommandError{Command: resp.Command, Status: resp.Status}
		r.diagnose(DiagDiscoveryRejected, err, zap.Uint8("frame_id", resp.FrameID))
		return nil
	}
	// 部分固件在 NT 到期时发送一条空数据的 ND 响应作为结束标记
	if len(resp.Data) == 0 {
		r.log.Debug("discovery end marker", zap.Uint8("frame_id", resp.FrameID))
		return nil
	}
	node, err := xbee.ParseNodeDescriptor(resp.Data)
	if err != nil {
		return err
	}
	if _, err := r.table.Resolve(resp.FrameID, node); err != nil {
		return err
	}
	r.emit(Event{Kind: EventNodeDiscovered, FrameID: resp.FrameID, Node: &node})
	return nil
}

func (r *Radio) handleReceivePacket(f xbee.Frame) error {
	rx := f.(xbee.ReceivePacket)
	r.emit(Event{Kind: EventMessageReceived, Message: &Message{
		Source:    rx.Source,
		Broadcast: rx.Broadcast(),
		Data:      rx.Data,
	}})
	return nil
}

func (r *Radio) handleModemStatus(f xbee.Frame) error {
	st := f.(xbee.ModemStatus)
	code := st.Status
	detail := r.text.ModemText(code)
	r.log.Info("modem status", zap.Uint8("status", uint8(code)), zap.String("detail", detail))
	r.emit(Event{Kind: EventModemStatus, ModemStatus: &code, Detail: detail})
	return nil
}

func (r *Radio) handleRemoteCommandResponse(f xbee.Frame) error {
	resp := f.(xbee.RemoteATCommandResponse)
	return fmt.Errorf("%w: %s from %s", ErrRemoteATUnsupported, resp.Command, resp.Source)
}
