// Package node is the main service which launches a proposer node and manages
// the lifecycle of all its associated services at runtime, such as chain access,
// content storage, intention bundling and the HTTP API, gracefully closing them
// if the process ends.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/latticelabs/lattice/cmd"
	"github.com/latticelabs/lattice/io/file"
	"github.com/latticelabs/lattice/io/logs"
	"github.com/latticelabs/lattice/monitoring/prometheus"
	"github.com/latticelabs/lattice/monitoring/tracing"
	"github.com/latticelabs/lattice/proposer/bundler"
	"github.com/latticelabs/lattice/proposer/chain"
	"github.com/latticelabs/lattice/proposer/content"
	"github.com/latticelabs/lattice/proposer/db"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/deposits"
	"github.com/latticelabs/lattice/proposer/intentions"
	"github.com/latticelabs/lattice/proposer/names"
	"github.com/latticelabs/lattice/proposer/notify"
	"github.com/latticelabs/lattice/proposer/rpc"
	"github.com/latticelabs/lattice/runtime"
	"github.com/latticelabs/lattice/runtime/debug"
	"github.com/latticelabs/lattice/runtime/prereqs"
	"github.com/latticelabs/lattice/runtime/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// ProposerNode defines a struct that handles the services running a lattice
// proposer. It handles the lifecycle of the entire system and registers
// services to a service registry.
type ProposerNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *Config
	services *runtime.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{} // Channel to wait for termination notifications.
	store    iface.Store
	wallet   *chain.Wallet
	resolver *names.Resolver
}

// New creates a new node instance, sets up configuration options, and registers
// every required service to the node.
func New(cliCtx *cli.Context) (*ProposerNode, error) {
	if err := tracing.Setup(
		"proposer", // service name
		cliCtx.String(cmd.TracingProcessNameFlag.Name),
		cliCtx.String(cmd.TracingEndpointFlag.Name),
		cliCtx.Float64(cmd.TraceSampleFractionFlag.Name),
		cliCtx.Bool(cmd.EnableTracingFlag.Name),
	); err != nil {
		return nil, err
	}

	// Warn if user's platform is not supported
	prereqs.WarnIfPlatformNotSupported(cliCtx.Context)

	cfg := newConfig(cliCtx)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := file.MkdirAll(cfg.DataDir); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory %s", cfg.DataDir)
	}

	registry := runtime.NewServiceRegistry()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &ProposerNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		services: registry,
		stop:     make(chan struct{}),
	}

	if err := node.startDB(); err != nil {
		return nil, err
	}

	if err := node.registerChainService(); err != nil {
		return nil, err
	}

	if err := node.registerContentService(); err != nil {
		return nil, err
	}

	if err := node.startNameResolver(); err != nil {
		return nil, err
	}

	if err := node.registerDepositsService(); err != nil {
		return nil, err
	}

	if err := node.registerIntentionsService(); err != nil {
		return nil, err
	}

	if err := node.registerBundlerService(); err != nil {
		return nil, err
	}

	if err := node.registerNotifyService(); err != nil {
		return nil, err
	}

	if err := node.registerRPCService(); err != nil {
		return nil, err
	}

	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// Start the ProposerNode and kicks off every registered service.
func (p *ProposerNode) Start() {
	p.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.Version(),
	}).Info("Starting proposer node")

	p.services.StartAll()

	stop := p.stop
	p.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		debug.Exit(p.cliCtx) // Ensure trace and CPU profile data are flushed.
		go p.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the proposer node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (p *ProposerNode) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()

	log.Info("Stopping proposer node")
	p.services.StopAll()
	if err := p.store.Close(); err != nil {
		log.Errorf("Failed to close store: %v", err)
	}
	p.cancel()
	close(p.stop)
}

func (p *ProposerNode) startDB() error {
	log.WithField("database-url", logs.MaskCredentialsLogging(p.cfg.DBURL)).Info("Opening proposer store")
	store, err := db.NewStore(p.ctx, p.cfg.DBURL)
	if err != nil {
		return errors.Wrap(err, "could not open proposer store")
	}
	p.store = store
	return nil
}

func (p *ProposerNode) registerChainService() error {
	wallet, err := chain.NewWallet(p.cfg.keySpec(), p.cfg.KeystorePasswordFile)
	if err != nil {
		return errors.Wrap(err, "could not load proposer key")
	}
	if declared := common.HexToAddress(p.cfg.ProposerAddress); wallet.Address() != declared {
		return errors.Errorf("proposer key resolves to %s, want %s", wallet.Address().Hex(), declared.Hex())
	}
	p.wallet = wallet

	svc, err := chain.NewService(p.ctx, &chain.Config{
		Endpoint:        p.cfg.ChainEndpoint,
		APIKey:          p.cfg.ChainAPIKey,
		ExpectedChainID: p.cfg.ChainID,
		Wallet:          wallet,
		BundleTracker:   common.HexToAddress(p.cfg.BundleTracker),
		VaultTracker:    common.HexToAddress(p.cfg.VaultTracker),
	})
	if err != nil {
		return errors.Wrap(err, "could not register chain service")
	}
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerContentService() error {
	svc, err := content.NewService(p.ctx, p.cfg.StoreURL)
	if err != nil {
		return errors.Wrap(err, "could not register content service")
	}
	return p.services.RegisterService(svc)
}

// startNameResolver builds the resolver shared by every service that maps
// names to addresses. Without a registry contract only literal addresses
// resolve.
func (p *ProposerNode) startNameResolver() error {
	var registry names.Registry = names.NopRegistry{}
	if p.cfg.NameRegistry != "" {
		var chainService *chain.Service
		if err := p.services.FetchService(&chainService); err != nil {
			return err
		}
		contractRegistry, err := names.NewContractRegistry(common.HexToAddress(p.cfg.NameRegistry), chainService.Client())
		if err != nil {
			return errors.Wrap(err, "could not bind name registry contract")
		}
		registry = contractRegistry
	}
	p.resolver = names.NewResolver(registry, p.cfg.NameCacheTTL)
	return nil
}

func (p *ProposerNode) registerDepositsService() error {
	var chainService *chain.Service
	if err := p.services.FetchService(&chainService); err != nil {
		return err
	}
	svc := deposits.NewService(p.ctx, &deposits.Config{
		Source:     chainService.Gateway(),
		Store:      p.store,
		Interval:   p.cfg.DepositScanInterval,
		StartBlock: p.cfg.DepositStartBlock,
	})
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerIntentionsService() error {
	var chainService *chain.Service
	if err := p.services.FetchService(&chainService); err != nil {
		return err
	}
	svc := intentions.NewService(p.ctx, &intentions.Config{
		Store:    p.store,
		Resolver: p.resolver,
		Chain:    chainService.Gateway(),
		QueueCap: p.cfg.QueueCap,
	})
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerBundlerService() error {
	var chainService *chain.Service
	if err := p.services.FetchService(&chainService); err != nil {
		return err
	}
	var contentService *content.Service
	if err := p.services.FetchService(&contentService); err != nil {
		return err
	}
	var intentionsService *intentions.Service
	if err := p.services.FetchService(&intentionsService); err != nil {
		return err
	}
	svc := bundler.NewService(p.ctx, &bundler.Config{
		Queue:    intentionsService.Queue(),
		Store:    p.store,
		Signer:   p.wallet,
		Anchor:   chainService.Gateway(),
		Uploader: contentService.Client(),
		Interval: p.cfg.BundleInterval,
		Timeout:  p.cfg.BundleTimeout,
		DataDir:  p.cfg.DataDir,
	})
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerNotifyService() error {
	var bundlerService *bundler.Service
	if err := p.services.FetchService(&bundlerService); err != nil {
		return err
	}
	var contentService *content.Service
	if err := p.services.FetchService(&contentService); err != nil {
		return err
	}
	svc := notify.NewService(p.ctx, &notify.Config{
		Source:        bundlerService,
		Pinner:        contentService.Client(),
		PinEnabled:    p.cfg.PinEnabled,
		WebhookURL:    p.cfg.WebhookURL,
		WebhookSecret: p.cfg.WebhookSecret,
	})
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerRPCService() error {
	var intentionsService *intentions.Service
	if err := p.services.FetchService(&intentionsService); err != nil {
		return err
	}
	var contentService *content.Service
	if err := p.services.FetchService(&contentService); err != nil {
		return err
	}
	var authSecret []byte
	if p.cfg.AuthSecretFile != "" {
		secret, err := rpc.LoadAuthSecret(p.cfg.AuthSecretFile)
		if err != nil {
			return errors.Wrap(err, "could not load auth secret")
		}
		authSecret = secret
	}
	svc := rpc.NewService(p.ctx, &rpc.Config{
		Host:           p.cfg.HTTPHost,
		Port:           p.cfg.HTTPPort,
		AllowedOrigins: p.cfg.CorsDomains,
		AuthSecret:     authSecret,
		SubmissionRate: p.cfg.SubmissionRate,
		Submitter:      intentionsService,
		Store:          p.store,
		Content:        contentService.Client(),
	})
	return p.services.RegisterService(svc)
}

func (p *ProposerNode) registerPrometheusService() error {
	service := prometheus.NewService(
		fmt.Sprintf("%s:%d", p.cliCtx.String(cmd.MonitoringHostFlag.Name), p.cliCtx.Int(cmd.MonitoringPortFlag.Name)),
		p.services,
	)
	hook := prometheus.NewLogrusCollector()
	logrus.AddHook(hook)
	return p.services.RegisterService(service)
}
