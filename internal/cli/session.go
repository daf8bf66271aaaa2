package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/xbee-digimesh/internal/config"
	"github.com/taoyao-code/xbee-digimesh/internal/logging"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
	"github.com/taoyao-code/xbee-digimesh/internal/simulator"
	"github.com/taoyao-code/xbee-digimesh/internal/transport"
)

// demoNodes 模拟模式下节点发现返回的节点
var demoNodes = []xbee.NodeDescriptor{
	{NetworkAddress: 0xFFFE, Address: 0x0013A20040A1B2C3, NodeIdentifier: "pump-1", ParentNetworkAddress: 0xFFFE, DeviceType: xbee.DeviceRouter, ProfileID: 0xC105, ManufacturerID: 0x101E},
	{NetworkAddress: 0xFFFE, Address: 0x0013A20040A1B2C4, NodeIdentifier: "valve-2", ParentNetworkAddress: 0xFFFE, DeviceType: xbee.DeviceEndDevice, ProfileID: 0xC105, ManufacturerID: 0x101E},
}

// demoUnreachable 模拟模式下发送总是 route not found 的地址
const demoUnreachable xbee.Address = 0x0013A20040DEAD00

// session 一次命令期间的引擎与链路
type session struct {
	radio *radio.Radio
	ctx   context.Context
	close func()
}

func openSession(cmd *cobra.Command, opts *options) (*session, error) {
	var (
		port   transport.Link
		engine radio.Config
	)
	if opts.simulate {
		port = simulator.New(
			simulator.WithNodes(demoNodes...),
			simulator.WithUnreachable(demoUnreachable),
		)
		engine = radio.DefaultConfig()
	} else {
		cfg, err := cfgpkg.Load(opts.cfgFile)
		if err != nil {
			return nil, err
		}
		if opts.device != "" {
			cfg.Serial.Device = opts.device
		}
		if opts.baud > 0 {
			cfg.Serial.BaudRate = opts.baud
		}
		p, err := transport.Open(cmd.Context(), cfg.Serial)
		if err != nil {
			return nil, err
		}
		port = p
		engine = cfg.Radio.Engine()
	}

	log := zap.NewNop()
	if opts.verbose {
		log = logging.NewWriterLogger(cmd.ErrOrStderr(), "debug", "console")
	}
	r := radio.New(port, engine, radio.WithLogger(log))

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(runCtx, port) }()

	return &session{
		radio: r,
		ctx:   ctx,
		close: func() {
			cancel()
			stop()
			_ = port.Close()
			if err := <-done; err != nil {
				fmt.Fprintln(os.Stderr, "link:", err)
			}
			_ = r.Close()
		},
	}, nil
}

// withSession 打开会话执行 fn，结束后关闭
func withSession(cmd *cobra.Command, opts *options, fn func(s *session) error) error {
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}
