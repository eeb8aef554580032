package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"contrib.go.opencensus.io/exporter/prometheus"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats/view"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/mesh"
	"github.com/justnobody/nobody-mesh/mesh/types"
	"github.com/justnobody/nobody-mesh/metrics"
	"github.com/justnobody/nobody-mesh/node"
	"github.com/justnobody/nobody-mesh/node/config"
)

var daemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "Join the mesh; broadcast stdin lines and print mesh events as JSON on stdout",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "listen",
			Usage:   "libp2p listen multiaddrs, overrides Libp2p.ListenAddresses",
			EnvVars: []string{"NOBODY_MESH_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "discovery",
			Usage:   "discovery backend: zeroconf, mdns, static or none",
			EnvVars: []string{"NOBODY_MESH_DISCOVERY"},
		},
		&cli.StringSliceFlag{
			Name:    "peer",
			Usage:   "static peer multiaddr including /p2p/<id>, implies --discovery=static",
			EnvVars: []string{"NOBODY_MESH_PEERS"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "serve prometheus metrics on host:port",
			EnvVars: []string{"NOBODY_MESH_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "journal",
			Usage:   "directory for the event journal",
			EnvVars: []string{"NOBODY_MESH_JOURNAL"},
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "broadcast stdin lines as is instead of wrapping them in intents",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}

		for sub, lvl := range cfg.Logging.SubsystemLevels {
			if err := logging.SetLogLevel(sub, lvl); err != nil {
				return xerrors.Errorf("setting log level for %s: %w", sub, err)
			}
		}

		if cfg.Metrics.ListenAddress != "" {
			if err := serveMetrics(cfg.Metrics.ListenAddress); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(cctx.Context)
		defer cancel()

		var n *mesh.Node
		stop, err := node.New(ctx,
			node.Config(cfg),
			node.Mesh(&n),
		)
		if err != nil {
			return xerrors.Errorf("initializing node: %w", err)
		}

		shutdownCh := make(chan struct{})
		finishCh := node.MonitorShutdown(shutdownCh,
			node.ShutdownHandler{Component: "mesh", StopFunc: func(context.Context) error {
				cancel()
				return nil
			}},
			node.ShutdownHandler{Component: "node", StopFunc: stop},
		)

		written := make(chan struct{})
		go func() {
			defer close(written)
			if err := writeEvents(cctx.App.Writer, n.Events()); err != nil {
				log.Errorw("writing events", "err", err)
			}
		}()

		go func() {
			if err := readInput(os.Stdin, n, cctx.Bool("raw")); err != nil {
				log.Warnw("reading stdin", "err", err)
			}
		}()

		log.Infow("mesh node starting", "peer", n.ID())

		runErr := n.Run(ctx)
		if runErr != nil {
			close(shutdownCh)
		}
		<-finishCh
		<-written

		return runErr
	},
}

func loadConfig(cctx *cli.Context) (*config.Mesh, error) {
	path, err := homedir.Expand(cctx.String("config"))
	if err != nil {
		return nil, xerrors.Errorf("expanding config path: %w", err)
	}

	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, xerrors.Errorf("loading config %s: %w", path, err)
	}

	if cctx.IsSet("listen") {
		cfg.Libp2p.ListenAddresses = cctx.StringSlice("listen")
	}
	if cctx.IsSet("discovery") {
		cfg.Discovery.Backend = cctx.String("discovery")
	}
	if cctx.IsSet("peer") {
		cfg.Discovery.Backend = config.DiscoveryStatic
		cfg.Discovery.StaticPeers = cctx.StringSlice("peer")
	}
	if cctx.IsSet("metrics-listen") {
		cfg.Metrics.ListenAddress = cctx.String("metrics-listen")
	}
	if cctx.IsSet("journal") {
		cfg.Journal.Path = cctx.String("journal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveMetrics(addr string) error {
	if err := view.Register(metrics.DefaultViews...); err != nil {
		return xerrors.Errorf("registering metric views: %w", err)
	}

	// the default registry carries the go runtime and process collectors
	registry := promclient.DefaultRegisterer.(*promclient.Registry)
	pe, err := prometheus.NewExporter(prometheus.Options{
		Registry:  registry,
		Namespace: "nobodymesh",
	})
	if err != nil {
		return xerrors.Errorf("creating the prometheus stats exporter: %w", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", pe)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorw("metrics endpoint stopped", "err", err)
		}
	}()

	log.Infow("serving metrics", "address", addr)
	return nil
}

type broadcaster interface {
	Enqueue(types.PrivacyIntent) error
	EnqueueRaw([]byte) error
}

// readInput broadcasts every non-empty line of r until r ends or the node
// stops accepting broadcasts.
func readInput(r io.Reader, b broadcaster, raw bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var err error
		if raw {
			err = b.EnqueueRaw([]byte(line))
		} else {
			err = b.Enqueue(types.WrapPayload(line))
		}
		if xerrors.Is(err, mesh.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return sc.Err()
}

// writeEvents prints each event as one JSON line until the stream closes.
func writeEvents(w io.Writer, events <-chan types.MeshEvent) error {
	enc := json.NewEncoder(w)
	for evt := range events {
		if err := enc.Encode(evt); err != nil {
			return err
		}
	}
	return nil
}
