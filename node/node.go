// Package node assembles the ledger, the report oracle and their storage
// into one runnable service.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/frame"
	"github.com/stvaults/vaulthub/internal/hub"
	"github.com/stvaults/vaulthub/internal/oracle"
	"github.com/stvaults/vaulthub/internal/store"
	"github.com/stvaults/vaulthub/libs/events"
	"github.com/stvaults/vaulthub/libs/log"
	"github.com/stvaults/vaulthub/libs/service"
	"github.com/stvaults/vaulthub/types"
)

// Node is the highest level interface to a running vault hub.
type Node struct {
	service.BaseService

	config *config.Config
	logger log.Logger
	clock  clock.Clock

	dbProvider config.DBProvider
	store      *store.Store
	frames     *frame.Clock
	roles      *auth.Roles
	hub        *hub.Hub
	oracle     *oracle.Oracle

	prometheusSrv *http.Server
	prometheusLn  net.Listener
	cancel        context.CancelFunc
	watchDone     chan struct{}
}

// Option sets a parameter for the node.
type Option func(*Node)

// WithClock sets the clock every component reads time from.
func WithClock(c clock.Clock) Option {
	return func(n *Node) { n.clock = c }
}

// WithDBProvider overrides how the database is opened.
func WithDBProvider(p config.DBProvider) Option {
	return func(n *Node) { n.dbProvider = p }
}

// NewNode returns a node over the configured database. token and vaults are
// the pool accounting and staking vault bindings of the deployment.
func NewNode(
	cfg *config.Config,
	logger log.Logger,
	token hub.Token,
	vaults hub.StakingVaults,
	options ...Option,
) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	n := &Node{
		config:     cfg,
		logger:     logger,
		clock:      clock.New(),
		dbProvider: config.DefaultDBProvider,
	}
	for _, option := range options {
		option(n)
	}

	hubCfg, err := makeHubConfig(cfg.Hub)
	if err != nil {
		return nil, err
	}
	sanity, err := makeSanityParams(cfg.Oracle)
	if err != nil {
		return nil, err
	}
	n.roles, err = makeRoles(cfg.Auth)
	if err != nil {
		return nil, err
	}
	n.frames, err = frame.NewClock(makeFrameConfig(cfg.Frame), n.clock)
	if err != nil {
		return nil, err
	}

	db, err := n.dbProvider(&config.DBContext{ID: "vaulthub", Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	n.store = store.NewStore(db)

	hubMetrics, oracleMetrics := hub.NopMetrics(), oracle.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		ns := cfg.Instrumentation.Namespace
		hubMetrics = hub.PrometheusMetrics(ns, "moniker", cfg.Moniker)
		oracleMetrics = oracle.PrometheusMetrics(ns, "moniker", cfg.Moniker)
	}

	n.hub, err = hub.NewHub(hubCfg, n.store, n.frames, token, vaults, n.roles,
		hub.WithLogger(logger),
		hub.WithMetrics(hubMetrics),
		hub.WithClock(n.clock),
	)
	if err != nil {
		_ = n.store.Close()
		return nil, err
	}
	n.oracle, err = oracle.NewOracle(sanity, n.store, n.hub, n.frames, vaults, n.roles,
		oracle.WithLogger(logger),
		oracle.WithMetrics(oracleMetrics),
		oracle.WithClock(n.clock),
	)
	if err != nil {
		_ = n.store.Close()
		return nil, err
	}

	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// OnStart starts the metrics server and the frame watcher.
func (n *Node) OnStart(ctx context.Context) error {
	if err := n.logEvents(); err != nil {
		return err
	}
	if n.config.Instrumentation.Prometheus {
		if err := n.startPrometheusServer(); err != nil {
			return err
		}
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.watchDone = make(chan struct{})
	go n.watchFrames(ctx)

	n.logger.Info("vault hub started",
		"moniker", n.config.Moniker,
		"ref_slot", n.frames.FrameReferenceSlot())
	return nil
}

// OnStop stops the node's services and closes the database.
func (n *Node) OnStop() {
	n.cancel()
	<-n.watchDone

	n.hub.EventSwitch().RemoveListener("node")

	if n.prometheusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.prometheusSrv.Shutdown(ctx); err != nil {
			n.logger.Error("Prometheus HTTP server Shutdown", "err", err)
		}
	}
	if err := n.store.Close(); err != nil {
		n.logger.Error("problem closing database", "err", err)
	}
}

func (n *Node) logEvents() error {
	evsw := n.hub.EventSwitch()
	logger := n.logger.With("module", "events")
	for _, event := range types.AllEvents {
		event := event
		err := evsw.AddListenerForEvent("node", event, func(data events.EventData) error {
			logger.Debug("event", "name", event, "data", data)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// startPrometheusServer serves the default registry under /metrics.
func (n *Node) startPrometheusServer() error {
	ln, err := net.Listen("tcp", n.config.Instrumentation.PrometheusListenAddr)
	if err != nil {
		return fmt.Errorf("prometheus listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics",
		promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: n.config.Instrumentation.MaxOpenConnections},
			),
		),
	)
	n.prometheusLn = ln
	n.prometheusSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.prometheusSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Error starting or closing listener:
			n.logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	return nil
}

// watchFrames wakes at every frame boundary and checks the oracle kept up.
func (n *Node) watchFrames(ctx context.Context) {
	defer close(n.watchDone)

	prev := n.frames.FrameReferenceSlot()
	for {
		now := n.clock.Now()
		timer := n.clock.Timer(n.frames.NextFrameAt(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		refSlot := n.frames.FrameReferenceSlot()
		n.logger.Info("new reporting frame", "ref_slot", refSlot)
		n.checkReportLag(prev)
		prev = refSlot
	}
}

// checkReportLag reports whether no root was published for the frame with
// reference slot prev.
func (n *Node) checkReportLag(prev uint64) bool {
	data, err := n.oracle.LatestReportData()
	switch {
	case errors.Is(err, types.ErrNoReportPublished):
		n.logger.Info("no report root published yet")
		return true
	case err != nil:
		n.logger.Error("loading report data", "err", err)
		return false
	case data.RefSlot < prev:
		n.logger.Error("no report root published for the previous frame",
			"expected_ref_slot", prev,
			"latest_ref_slot", data.RefSlot)
		return true
	}
	return false
}

// MetricsAddr returns the address the metrics server listens on, or nil if
// it is not running.
func (n *Node) MetricsAddr() net.Addr {
	if n.prometheusLn == nil {
		return nil
	}
	return n.prometheusLn.Addr()
}

// Config returns the node configuration.
func (n *Node) Config() *config.Config { return n.config }

// Hub returns the vault ledger.
func (n *Node) Hub() *hub.Hub { return n.hub }

// Oracle returns the report ingestion service.
func (n *Node) Oracle() *oracle.Oracle { return n.oracle }

// Store returns the node's store.
func (n *Node) Store() *store.Store { return n.store }

// Frames returns the frame clock.
func (n *Node) Frames() *frame.Clock { return n.frames }

// Roles returns the role registry built from the config.
func (n *Node) Roles() *auth.Roles { return n.roles }
