// Package rawhidcli implements the rawhid command line tool: enumerating HID
// devices, dumping decoded report descriptors, and exchanging raw reports
// with a device for debugging.
package rawhidcli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/hidio/rawhid"
	"github.com/hidio/rawhid/backend/hidraw"
	"github.com/hidio/rawhid/internal/registry"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "rawhid"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type app struct {
	log     *zap.Logger
	dataDir string
	backend *hidraw.Backend
}

type appProvider func() *app

func NewRootCmd(configDir string) *cobra.Command {
	dataDir := filepath.Join(configDir, "data")
	debug := false

	rootCmd := &cobra.Command{
		Use:   "rawhid",
		Short: "Raw HID device access",
		Long:  `rawhid opens all sibling interfaces of a composite HID device and exchanges raw reports with it.`,
	}
	var a *app
	provider := func() *app {
		return a
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", dataDir, "data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", debug, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(debug)
		if err != nil {
			return err
		}
		a = &app{
			log:     log,
			dataDir: dataDir,
			backend: hidraw.New(log.Named("hidraw")),
		}
		return nil
	}
	rootCmd.AddCommand(NewListDevices(provider))
	rootCmd.AddCommand(NewSeenDevices(provider))
	rootCmd.AddCommand(NewDescriptor(provider))
	rootCmd.AddCommand(NewRead(provider))
	rootCmd.AddCommand(NewWrite(provider))
	rootCmd.AddCommand(NewMonitor(provider))
	return rootCmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

func (a *app) openDevice(parentID string) (*rawhid.RawDevice, error) {
	dev, err := rawhid.Open(a.backend, parentID, rawhid.WithLogger(a.log.Named("device")))
	if err != nil {
		return nil, err
	}
	a.recordDevice(parentID, dev)
	return dev, nil
}

// recordDevice updates the seen-devices registry; failures only log since
// the registry is bookkeeping, not part of device access.
func (a *app) recordDevice(parentID string, dev *rawhid.RawDevice) {
	reg, err := registry.Open(filepath.Join(a.dataDir, "registry"), a.log.Named("registry"), time.Now)
	if err != nil {
		a.log.Warn("failed to open device registry", zap.Error(err))
		return
	}
	defer reg.Close()
	_, err = reg.Touch(registry.Device{
		ParentID:   parentID,
		Name:       dev.Name(),
		VendorID:   dev.VendorID(),
		ProductID:  dev.ProductID(),
		Interfaces: dev.InterfaceCount(),
	})
	if err != nil {
		a.log.Warn("failed to record device", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func NewListDevices(a appProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List HID devices",
		Long:  `List HID devices connected to the system.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var devices []*hid.DeviceInfo
			err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(di *hid.DeviceInfo) error {
				info := *di
				devices = append(devices, &info)
				return nil
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, devices)
		},
	}
}

func NewSeenDevices(a appProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "seen-devices",
		Short: "List devices recorded by previous runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			reg, err := registry.Open(filepath.Join(app.dataDir, "registry"), app.log.Named("registry"), time.Now)
			if err != nil {
				return err
			}
			defer reg.Close()
			devices, err := reg.List()
			if err != nil {
				return err
			}
			return printJSON(cmd, devices)
		},
	}
}

func NewDescriptor(a appProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "descriptor <parent>",
		Short: "Print the decoded report descriptor of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a().openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			return printJSON(cmd, dev.Descriptor())
		},
	}
}

func NewRead(a appProvider) *cobra.Command {
	var (
		timeoutMillis int
		size          int
	)
	cmd := &cobra.Command{
		Use:   "read <parent>",
		Short: "Read one input report from a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a().openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			buf := make([]byte, size)
			n, err := dev.ReadReport(buf, time.Duration(timeoutMillis)*time.Millisecond)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no report received")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf[:n]))
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutMillis, "timeout", 1000, "read timeout in milliseconds, negative waits forever")
	cmd.Flags().IntVar(&size, "size", 64, "read buffer size in bytes")
	return cmd
}

func NewWrite(a appProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "write <parent> <report-hex>",
		Short: "Write one report to a device",
		Long:  `Write one report to a device. The first byte of the hex-encoded report is its report id and selects the destination interface.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("invalid report hex: %w", err)
			}
			dev, err := a().openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			n, err := dev.WriteReport(report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes\n", n)
			return nil
		},
	}
}

func NewMonitor(a appProvider) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "monitor <parent>",
		Short: "Print input reports until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: monitor <parent>")
			}
			dev, err := a().openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			ctx := cmd.Context()
			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				<-groupCtx.Done()
				dev.InterruptRead()
				return nil
			})
			group.Go(func() error {
				buf := make([]byte, size)
				for {
					n, err := dev.ReadReport(buf, -1)
					if err != nil {
						return err
					}
					if groupCtx.Err() != nil {
						return nil
					}
					if n > 0 {
						fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf[:n]))
					}
				}
			})
			return group.Wait()
		},
	}
	cmd.Flags().IntVar(&size, "size", 64, "read buffer size in bytes")
	return cmd
}
