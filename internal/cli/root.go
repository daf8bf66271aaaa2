// Package cli 实现 digimeshctl：直接通过串口（或内置模拟模块）操作本地 DigiMesh 模块
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options 全局参数
type options struct {
	cfgFile  string
	device   string
	baud     int
	simulate bool
	output   string
	timeout  time.Duration
	verbose  bool
}

// NewRootCmd 构造命令树（每次调用返回独立实例，便于测试）
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "digimeshctl",
		Short: "Operate a local XBee DigiMesh module over its API-mode serial (or serial-over-TCP) link",
		Long: `digimeshctl talks to a locally attached XBee DigiMesh module in API mode.
It reads and sets the node identifier and discovery timeout, runs node
discovery, transmits data and issues raw AT commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default $DIGIMESH_CONFIG or ./configs/example.yaml)")
	pf.StringVarP(&opts.device, "device", "d", "", "serial device, overrides config")
	pf.IntVarP(&opts.baud, "baud", "b", 0, "baud rate, overrides config")
	pf.BoolVar(&opts.simulate, "simulate", false, "use the built-in simulated module instead of a serial port")
	pf.StringVarP(&opts.output, "output", "o", "text", "output format: text, json, yaml")
	pf.DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall command timeout")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log frame traffic to stderr")

	root.AddCommand(
		newPortsCmd(),
		newNICmd(opts),
		newNTCmd(opts),
		newDiscoverCmd(opts),
		newSendCmd(opts),
		newATCmd(opts),
		newListenCmd(opts),
	)
	return root
}

// Execute 入口
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
