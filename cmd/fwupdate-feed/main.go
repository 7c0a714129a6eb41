// Command fwupdate-feed drives a fwpkg.Parser against either a local file
// or an HTTP upload endpoint, registering one demo consumer route from
// CLI-supplied descriptor flags and reporting how many image bytes it
// received.
package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/bmc-fw/fwupdate/internal/filefeed"
	"github.com/bmc-fw/fwupdate/internal/httpfeed"
	"github.com/bmc-fw/fwupdate/pkg/fwpkg"
	"github.com/bmc-fw/fwupdate/pkg/logging"
)

const version = "1.0.0"

var (
	pciVendorFlag      string
	ianaEnterpriseFlag string
	uuidFlag           string
	logLevelFlag       string
	listenAddrFlag     string
	versionFlag        bool

	rootCmd *cobra.Command
)

func getBuildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "fwupdate-feed",
		Short: "Feed firmware update packages through the descriptor-routed parser",
	}
	rootCmd.PersistentFlags().StringVar(&pciVendorFlag, "pci-vendor", "", "PCI vendor ID (hex or decimal) the demo consumer matches")
	rootCmd.PersistentFlags().StringVar(&ianaEnterpriseFlag, "iana-enterprise", "", "IANA enterprise ID the demo consumer matches")
	rootCmd.PersistentFlags().StringVar(&uuidFlag, "uuid", "", "Device UUID (32 hex chars) the demo consumer matches")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	feedFileCmd := &cobra.Command{
		Use:   "feed-file <path>",
		Short: "Feed a package file on disk into the parser",
		Args:  cobra.ExactArgs(1),
		RunE:  runFeedFile,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP endpoint that accepts package uploads",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&listenAddrFlag, "listen", ":8080", "address to listen on")

	rootCmd.AddCommand(feedFileCmd, serveCmd)
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("fwupdate-feed %s\n", version)
		fmt.Printf("Built: %s\n", getBuildTimestamp())
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// descriptorsFromFlags builds the demo consumer's descriptor set from
// whichever of --pci-vendor/--iana-enterprise/--uuid were supplied.
func descriptorsFromFlags() ([]fwpkg.Descriptor, error) {
	var descs []fwpkg.Descriptor

	if pciVendorFlag != "" {
		v, err := strconv.ParseUint(pciVendorFlag, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("--pci-vendor: %w", err)
		}
		descs = append(descs, fwpkg.PciVendorID{ID: uint16(v)})
	}
	if ianaEnterpriseFlag != "" {
		v, err := strconv.ParseUint(ianaEnterpriseFlag, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("--iana-enterprise: %w", err)
		}
		descs = append(descs, fwpkg.IanaEnterpriseID{ID: uint32(v)})
	}
	if uuidFlag != "" {
		if len(uuidFlag) != 32 {
			return nil, fmt.Errorf("--uuid: expected 32 hex characters, got %d", len(uuidFlag))
		}
		var arr [16]byte
		for i := 0; i < 16; i++ {
			b, err := strconv.ParseUint(uuidFlag[i*2:i*2+2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("--uuid: %w", err)
			}
			arr[i] = byte(b)
		}
		descs = append(descs, fwpkg.UUIDDescriptor{ID: arr})
	}

	if len(descs) == 0 {
		return nil, fmt.Errorf("at least one of --pci-vendor, --iana-enterprise, --uuid is required")
	}
	return descs, nil
}

// newLogger builds a logger whose non-JSON output is tagged per line with
// whatever stateFn currently reports, e.g. the active parser's state.
func newLogger(stateFn func() string) hclog.Logger {
	level := logLevelFlag
	if level == "" {
		level = logging.GetLogLevel()
	}
	return logging.NewLogger("fwupdate-feed", level, nil, stateFn)
}

func runFeedFile(cmd *cobra.Command, args []string) error {
	descs, err := descriptorsFromFlags()
	if err != nil {
		return err
	}

	// parser is assigned below; the closure reads it once newLogger's
	// returned logger actually emits a line, by which point it's set.
	var parser *fwpkg.Parser
	logger := newLogger(func() string {
		if parser == nil {
			return ""
		}
		return parser.State().String()
	})

	parser, err = fwpkg.NewParserWithLogger(fwpkg.ProtocolVersion, logger.Named("parser"))
	if err != nil {
		return err
	}

	var matchedBytes int
	parser.RegisterComponentRoute(descs, func(status error, data []byte) {
		matchedBytes += len(data)
	})

	feeder := filefeed.NewWithLogger(args[0], logger.Named("filefeed"))
	total, err := feeder.Feed(parser)
	if err != nil {
		return err
	}

	fmt.Printf("fed %d bytes, parser state=%s, matched=%d bytes\n", total, parser.State(), matchedBytes)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	descs, err := descriptorsFromFlags()
	if err != nil {
		return err
	}

	routes := []httpfeed.ConsumerRoute{{Name: "cli-demo", Descriptors: descs}}
	logger := newLogger(func() string { return routes[0].Name })

	handler := httpfeed.NewHandler(routes, logger.Named("httpfeed"))

	logger.Info("listening", "addr", listenAddrFlag)
	return http.ListenAndServe(listenAddrFlag, handler.Routes())
}
