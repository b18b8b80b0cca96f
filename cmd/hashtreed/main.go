// Command hashtreed is the daemon + CLI entrypoint named in SPEC_FULL.md
// §1: a long-lived process owning exactly one client.Client instance, plus
// operational subcommands (stats, put, get) folded into the same binary
// via urfave/cli subcommands, in the idiom of the teacher's own
// cmd/op-node entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/lauri000/hashtree/blob/persistence"
	"github.com/lauri000/hashtree/client"
	"github.com/lauri000/hashtree/content"
	"github.com/lauri000/hashtree/rtc"
)

func main() {
	app := &cli.App{
		Name:  "hashtreed",
		Usage: "content-addressed P2P block exchange runtime",
		Commands: []*cli.Command{
			daemonCommand,
			putCommand,
			getCommand,
			statsCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hashtreed:", err)
		os.Exit(1)
	}
}

var commonFlags = []cli.Flag{
	&cli.StringFlag{Name: "data-dir", Value: "", Usage: "LevelDB directory; empty uses an in-memory store"},
	&cli.Int64Flag{Name: "storage-max-bytes", Value: 1 << 30, Usage: "local blob cache byte budget"},
	&cli.StringSliceFlag{Name: "content-server", Usage: "content-addressed HTTP server URL (repeatable)"},
	&cli.StringSliceFlag{Name: "content-server-writable", Usage: "writable content-addressed HTTP server URL (repeatable)"},
	&cli.StringSliceFlag{Name: "ice-server", Usage: "STUN/TURN server URL (repeatable)"},
}

func buildDriver(c *cli.Context) (persistence.Driver, error) {
	dir := c.String("data-dir")
	if dir == "" {
		return persistence.NewMemory(), nil
	}
	return persistence.NewLeveldb(dir)
}

func buildContentServers(c *cli.Context) []content.Server {
	var servers []content.Server
	for _, u := range c.StringSlice("content-server") {
		servers = append(servers, content.Server{URL: u, Writable: false})
	}
	for _, u := range c.StringSlice("content-server-writable") {
		servers = append(servers, content.Server{URL: u, Writable: true})
	}
	return servers
}

func newClient(c *cli.Context, logger log.Logger) (*client.Client, error) {
	driver, err := buildDriver(c)
	if err != nil {
		return nil, fmt.Errorf("open storage driver: %w", err)
	}
	cfg := client.Config{
		Log:             logger,
		Driver:          driver,
		MaxStorageBytes: c.Int64("storage-max-bytes"),
		ContentServers:  buildContentServers(c),
		ICEServers:      c.StringSlice("ice-server"),
	}
	// A bare CLI invocation has no signaling relay to hand SDP/ICE
	// payloads to; rtc.Controller.Connect/HandleOffer simply are never
	// called in that case, matching spec.md §1's "relay-bus transport ...
	// out of scope: the core consumes these via small, stated interfaces".
	var send rtc.SignalSend = func(peer string, kind string, payload []byte) error {
		return fmt.Errorf("hashtreed: no signaling bus configured, cannot send %s to %s", kind, peer)
	}
	return client.New(cfg, send), nil
}

var daemonCommand = &cli.Command{
	Name:  "daemon",
	Usage: "run the long-lived hashtree block-exchange process",
	Flags: append(commonFlags,
		&cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "address to serve Prometheus metrics on, empty disables"},
		&cli.StringFlag{Name: "content-servers-file", Value: "", Usage: "newline-delimited content server list, live-reloaded on change"},
	),
	Action: runDaemon,
}

var putCommand = &cli.Command{
	Name:      "put",
	Usage:     "store a file in the local blob cache, optionally uploading it",
	ArgsUsage: "<file>",
	Flags: append(commonFlags,
		&cli.BoolFlag{Name: "upload", Value: true, Usage: "upload to configured writable content servers"},
		&cli.StringFlag{Name: "mime-type", Value: "application/octet-stream"},
	),
	Action: runPut,
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "fetch a blob by hash and write it to a file",
	ArgsUsage: "<hash-hex> <out-file>",
	Flags:     commonFlags,
	Action:    runGet,
}

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "print local storage and connectivity stats",
	Flags:  commonFlags,
	Action: runStats,
}

func runDaemon(c *cli.Context) error {
	logger := log.New("cmd", "hashtreed")
	cl, err := newClient(c, logger)
	if err != nil {
		return err
	}

	var stopMetrics func() error
	if addr := c.String("metrics-addr"); addr != "" {
		stopMetrics = serveMetrics(logger, addr, cl)
	}

	var stopWatch func()
	if path := c.String("content-servers-file"); path != "" {
		stopWatch, err = watchContentServers(logger, cl, path)
		if err != nil {
			return fmt.Errorf("watch content servers file: %w", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("hashtreed daemon started")
	<-sig
	logger.Info("hashtreed daemon shutting down")

	var errs *multierror.Error
	if stopWatch != nil {
		stopWatch()
	}
	if stopMetrics != nil {
		if err := stopMetrics(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	if err := cl.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close client: %w", err))
	}
	return errs.ErrorOrNil()
}

func runPut(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("usage: hashtreed put <file>")
	}
	path := c.Args().Get(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	logger := log.New("cmd", "hashtreed-put")
	cl, err := newClient(c, logger)
	if err != nil {
		return err
	}
	defer cl.Close()

	bar := newUploadBar(len(data))
	cl.SetHandlers(client.Handlers{
		OnUploadProgress: func(p client.UploadProgress) {
			bar.report(p)
		},
	})

	hashHex, cid, err := cl.PutBlob(context.Background(), data, c.String("mime-type"), c.Bool("upload"))
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	bar.finish()

	fmt.Printf("hash: %s\n", hashHex)
	if cid.Encrypted() {
		fmt.Printf("key:  %x\n", *cid.Key)
	}
	return nil
}

func runGet(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: hashtreed get <hash-hex> <out-file>")
	}
	hashHex := strings.TrimPrefix(c.Args().Get(0), "0x")
	outPath := c.Args().Get(1)

	logger := log.New("cmd", "hashtreed-get")
	cl, err := newClient(c, logger)
	if err != nil {
		return err
	}
	defer cl.Close()

	h, err := parseHash(hashHex)
	if err != nil {
		return err
	}
	data, source, err := cl.GetBlob(context.Background(), h)
	if err != nil {
		return fmt.Errorf("get blob: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("wrote %d bytes from source=%s to %s\n", len(data), source, outPath)
	return nil
}

func runStats(c *cli.Context) error {
	logger := log.New("cmd", "hashtreed-stats")
	cl, err := newClient(c, logger)
	if err != nil {
		return err
	}
	defer cl.Close()

	printStatsTable(cl)
	return nil
}
