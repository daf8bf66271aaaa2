package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
	"github.com/taoyao-code/xbee-digimesh/internal/transport/serialport"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.List()
			if err != nil {
				return fmt.Errorf("list ports: %w", err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(out(cmd), "No serial ports found.")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(out(cmd), p)
			}
			return nil
		},
	}
}

func newNICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ni [label]",
		Short: "Read or set the module's node identifier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				if len(args) == 1 {
					call, err := s.radio.SetNodeIdentifier(s.ctx, args[0])
					if err != nil {
						return err
					}
					if _, err := call.Wait(s.ctx); err != nil {
						return fmt.Errorf("set NI: %w", err)
					}
				}
				call, err := s.radio.NodeIdentifier(s.ctx)
				if err != nil {
					return err
				}
				label, err := call.Wait(s.ctx)
				if err != nil {
					return fmt.Errorf("read NI: %w", err)
				}
				return render(out(cmd), opts.output, map[string]string{"node_identifier": label}, func(w io.Writer) {
					fmt.Fprintln(w, label)
				})
			})
		},
	}
}

func newNTCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nt [duration]",
		Short: "Read or set the node discovery timeout (e.g. 6s)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var set time.Duration
			if len(args) == 1 {
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				set = d
			}
			return withSession(cmd, opts, func(s *session) error {
				var (
					call *radio.Call[time.Duration]
					err  error
				)
				if set > 0 {
					call, err = s.radio.SetDiscoveryTimeout(s.ctx, set)
				} else {
					call, err = s.radio.DiscoveryTimeout(s.ctx)
				}
				if err != nil {
					return err
				}
				nt, err := call.Wait(s.ctx)
				if err != nil {
					return fmt.Errorf("NT: %w", err)
				}
				return render(out(cmd), opts.output, map[string]string{"discovery_timeout": nt.String()}, func(w io.Writer) {
					fmt.Fprintln(w, nt)
				})
			})
		},
	}
}

func newDiscoverCmd(opts *options) *cobra.Command {
	var deadline time.Duration
	c := &cobra.Command{
		Use:   "discover",
		Short: "Run node discovery and print the nodes that answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session) error {
				call, err := s.radio.Discover(s.ctx, deadline)
				if err != nil {
					return err
				}
				nodes, err := call.Wait(s.ctx)
				if err != nil {
					return fmt.Errorf("discover: %w", err)
				}
				return render(out(cmd), opts.output, nodes, func(w io.Writer) {
					if len(nodes) == 0 {
						fmt.Fprintln(w, "No nodes found.")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ADDRESS\tNI\tTYPE\tPARENT")
					for _, n := range nodes {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%04x\n", n.Address, n.NodeIdentifier, n.DeviceType, n.ParentNetworkAddress)
					}
					_ = tw.Flush()
				})
			})
		},
	}
	c.Flags().DurationVar(&deadline, "deadline", 0, "discovery deadline (default: module NT plus margin)")
	return c
}

func newSendCmd(opts *options) *cobra.Command {
	var asHex bool
	c := &cobra.Command{
		Use:   "send <address|broadcast> <data>",
		Short: "Transmit data and wait for the delivery status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := xbee.ParseAddress(args[0])
			if err != nil {
				return err
			}
			payload := []byte(args[1])
			if asHex {
				if payload, err = hex.DecodeString(args[1]); err != nil {
					return fmt.Errorf("invalid hex data: %w", err)
				}
			}
			return withSession(cmd, opts, func(s *session) error {
				var call *radio.Call[radio.TransmitResult]
				if dest.IsBroadcast() {
					call, err = s.radio.Broadcast(s.ctx, payload)
				} else {
					call, err = s.radio.Send(s.ctx, dest, payload)
				}
				if err != nil {
					return err
				}
				res, err := call.Wait(s.ctx)
				if err != nil {
					return fmt.Errorf("transmit: %w", err)
				}
				text := xbee.DefaultStatusText().DeliveryText(res.Delivery)
				if err := render(out(cmd), opts.output, res, func(w io.Writer) {
					fmt.Fprintf(w, "frame %d: %s (retries %d)\n", res.FrameID, text, res.Retries)
				}); err != nil {
					return err
				}
				if !res.Delivered() {
					return fmt.Errorf("delivery failed: %s", text)
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&asHex, "hex", false, "data is hex encoded")
	return c
}

func newATCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "at <command> [hex-parameter]",
		Short: "Issue a raw local AT command",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.ToUpper(args[0])
			var param []byte
			if len(args) == 2 {
				p, err := hex.DecodeString(args[1])
				if err != nil {
					return fmt.Errorf("invalid hex parameter: %w", err)
				}
				param = p
			}
			return withSession(cmd, opts, func(s *session) error {
				call, err := s.radio.Command(s.ctx, command, param)
				if err != nil {
					return err
				}
				res, err := call.Wait(s.ctx)
				var cmdErr *xbee.CommandError
				if errors.As(err, &cmdErr) {
					return fmt.Errorf("%s: %s", command, xbee.DefaultStatusText().CommandText(cmdErr.Status))
				}
				if err != nil {
					return err
				}
				return render(out(cmd), opts.output, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", res.Command, hex.EncodeToString(res.Data))
				})
			})
		},
	}
}

func newListenCmd(opts *options) *cobra.Command {
	var duration time.Duration
	c := &cobra.Command{
		Use:   "listen",
		Short: "Print the event stream as JSON until the timeout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration > 0 && duration < opts.timeout {
				opts.timeout = duration
			}
			return withSession(cmd, opts, func(s *session) error {
				events := s.radio.Events()
				for {
					select {
					case <-s.ctx.Done():
						return nil
					case ev, ok := <-events:
						if !ok {
							return nil
						}
						if err := render(out(cmd), "json", ev, nil); err != nil {
							return err
						}
					}
				}
			})
		},
	}
	c.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: --timeout)")
	return c
}
