// Command netcored runs the networking core as a standalone daemon: it
// builds a Transport from the configured kind, drives a machw.Driver and
// netcore.Core over it, and serves Prometheus metrics over HTTP under an
// errgroup-supervised, signal-aware shutdown, minus the gRPC/GoBGP/systemd
// pieces that have no home here (DESIGN.md, "Dropped teacher dependencies").
package main

import (
	"bufio"
	"context"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tm4cnet/netcore/internal/config"
	"github.com/tm4cnet/netcore/internal/identity"
	"github.com/tm4cnet/netcore/internal/machw"
	"github.com/tm4cnet/netcore/internal/machw/transport"
	"github.com/tm4cnet/netcore/internal/metrics"
	"github.com/tm4cnet/netcore/internal/netcore"
	"github.com/tm4cnet/netcore/internal/store"
	appversion "github.com/tm4cnet/netcore/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, transportKind, storePath string

	cmd := &cobra.Command{
		Use:   "netcored",
		Short: "Run the embedded networking core as a host daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport.Kind = transportKind
			}
			if cmd.Flags().Changed("store-path") {
				cfg.Store.Path = storePath
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a netcored YAML config file")
	cmd.Flags().StringVar(&transportKind, "transport", "", "override transport.kind: sim, spi, or rawsock")
	cmd.Flags().StringVar(&storePath, "store-path", "", "override store.path for the persisted network identity")
	cmd.Version = appversion.Full("netcored")
	cmd.SetVersionTemplate("{{.Version}}\n")
	return cmd
}

// run wires the configured Transport, Driver, identity Store, and Core,
// then supervises the Main Loop goroutine and the metrics HTTP server
// with an errgroup and signal-aware shutdown.
func run(cfg *config.Config) error {
	levelVar := new(slog.LevelVar)
	levelVar.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log.Format, levelVar)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	tp, err := openTransport(cfg.Transport)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer tp.Close()

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	mac := randomLocallyAdministeredMAC()
	driver := machw.New(tp, mac)
	driver.Init(machw.FilterBroadcast | machw.FilterUnicast | machw.DuplexFull)

	id := identity.New(identity.MAC(mac), st)
	if err := id.Load(); err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	opts := []netcore.Option{
		netcore.WithLogger(logger),
		netcore.WithMetrics(collector),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var consoleSrv *consoleServer
	if cfg.Console.Addr != "" {
		consoleSrv, err = newConsoleServer(cfg.Console.Addr)
		if err != nil {
			return fmt.Errorf("start console server: %w", err)
		}
		opts = append(opts, netcore.WithConsole(consoleSrv.poll, consoleSrv.write))
	}

	reboot := func() {
		logger.Warn("reboot requested via console; netcored does not restart itself, exiting")
		stop()
	}

	core := netcore.New(id, driver, reboot, opts...)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		core.Run(gCtx)
		return nil
	})

	if consoleSrv != nil {
		g.Go(func() error {
			return consoleSrv.acceptLoop(gCtx)
		})
	}

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(metricsSrv, consoleSrv)
	})

	logger.Info("netcored starting",
		slog.String("transport", cfg.Transport.Kind),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("console_addr", cfg.Console.Addr))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("netcored: %w", err)
	}
	return nil
}

func newLogger(format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// openTransport builds the Transport named by cfg.Kind. config.Validate
// already rejects a kind/field combination that can't be opened, so the
// only remaining failures here are environmental (missing spidev node,
// absent interface, permission).
func openTransport(cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case "spi":
		return transport.OpenSPI(cfg.Device, cfg.SpeedHz)
	case "rawsock":
		return transport.OpenRawSocket(cfg.Interface)
	default:
		return transport.NewSim(), nil
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Path == "" {
		return store.NewMemory(), nil
	}
	return store.NewFile(cfg.Path)
}

// randomLocallyAdministeredMAC generates a MAC with the locally
// administered bit set and the multicast bit clear, for a daemon run
// with no board-assigned address of its own.
func randomLocallyAdministeredMAC() [6]byte {
	var mac [6]byte
	if _, err := cryptorand.Read(mac[:]); err != nil {
		// crypto/rand failing here means the host's entropy source is
		// broken; fall back to a fixed address rather than failing startup.
		return [6]byte{0x02, 0x00, 0x00, 0x4e, 0x43, 0x01}
	}
	mac[0] = (mac[0] &^ 0x01) | 0x02
	return mac
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe binds addr under ctx before handing the listener to
// srv.Serve, so a cancelled ctx during bind aborts cleanly instead of
// leaving srv.Serve blocked on a Listen that will never return.
func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func gracefulShutdown(metricsSrv *http.Server, console *consoleServer) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := metricsSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
	}
	if console != nil {
		if err := console.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close console server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// consoleServer bridges a single TCP connection to the non-blocking
// poll/write hooks netcore.WithConsole expects: a background goroutine
// blocks on conn.Read and feeds a buffered channel, so RunOnce's
// drainConsole never blocks waiting on the network.
type consoleServer struct {
	ln      net.Listener
	bytesCh chan byte
	conn    net.Conn
}

func newConsoleServer(addr string) (*consoleServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &consoleServer{
		ln:      ln,
		bytesCh: make(chan byte, 4096),
	}, nil
}

func (cs *consoleServer) acceptLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		cs.ln.Close()
	}()
	for {
		conn, err := cs.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("console accept: %w", err)
		}
		cs.conn = conn
		go cs.readLoop(conn)
	}
}

func (cs *consoleServer) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		cs.bytesCh <- b
	}
}

// poll satisfies the non-blocking byte source netcore.WithConsole wants:
// it drains whatever the read goroutine has already buffered without
// ever blocking the Main Loop on network I/O.
func (cs *consoleServer) poll() (byte, bool) {
	select {
	case b := <-cs.bytesCh:
		return b, true
	default:
		return 0, false
	}
}

func (cs *consoleServer) write(s string) {
	if cs.conn == nil {
		return
	}
	_, _ = cs.conn.Write([]byte(s))
}

func (cs *consoleServer) Close() error {
	return cs.ln.Close()
}
