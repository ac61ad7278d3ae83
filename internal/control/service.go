// Package control assembles the walletd components and manages their
// lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/opengrants/walletd/internal/core/config"
	"github.com/opengrants/walletd/internal/core/provision"
	"github.com/opengrants/walletd/internal/core/wallet"
	"github.com/opengrants/walletd/internal/core/worker"
	"github.com/opengrants/walletd/internal/health"
	"github.com/opengrants/walletd/internal/infra/contract"
	redisclient "github.com/opengrants/walletd/internal/infra/redis"
	"github.com/opengrants/walletd/internal/infra/rpc"
	"github.com/opengrants/walletd/internal/infra/storage"
	"github.com/opengrants/walletd/internal/infra/storage/memory"
	"github.com/opengrants/walletd/internal/infra/storage/postgres"
)

// Service is the assembled application: storage, RPC pool, contract
// bindings, provisioner, retry worker and the health surface.
type Service struct {
	cfg config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client
	retryQueue  *redisclient.RetryQueue

	repo        storage.WalletRepository
	pool        *rpc.Pool
	keys        *wallet.KeyManager
	provisioner *provision.Provisioner
	contracts   map[string]*contract.Handle
	signed      map[string]*contract.SignedHandle

	retrier      *worker.Retrier
	healthMon    *health.Monitor
	healthServer *health.Server

	log *slog.Logger
}

// NewService wires all dependencies. Nothing here touches the chain; the
// pool probes lazily and contract bindings go through it per call.
func NewService(cfg config.AppConfig) (*Service, error) {
	s := &Service{
		cfg:       cfg,
		contracts: make(map[string]*contract.Handle),
		signed:    make(map[string]*contract.SignedHandle),
		log:       slog.Default(),
	}

	// 1. Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		s.db = db
		s.repo = postgres.NewWalletRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		s.repo = memory.NewWalletRepo()
		slog.Info("Using memory storage")
	}

	// 2. RPC endpoint pool
	pool, err := rpc.NewPool(cfg.Chain.Endpoints, cfg.Chain.ChainID, cfg.Chain.ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to init rpc pool: %w", err)
	}
	s.pool = pool

	// 3. Redis retry queue (optional)
	var provQueue provision.RetryQueue
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, automatic retries disabled", "error", err)
		} else {
			s.redisClient = client
			s.retryQueue = redisclient.NewRetryQueue(client)
			provQueue = s.retryQueue
		}
	}

	// 4. Provisioner
	s.provisioner = provision.NewProvisioner(s.repo, provQueue)

	// 5. Signer and contract bindings
	s.keys = wallet.NewKeyManager(cfg.Signer.AdminKeyHex)
	adminSigner, signerErr := s.keys.AdminSigner()
	if signerErr != nil {
		slog.Warn("Admin signer unavailable, transactional bindings degraded", "error", signerErr)
	}

	backend := rpc.NewBackend(pool)
	chainID := big.NewInt(cfg.Chain.ChainID)
	for _, cc := range cfg.Contracts {
		abiJSON := ""
		if cc.ABIPath != "" {
			raw, err := os.ReadFile(cc.ABIPath)
			if err != nil {
				slog.Warn("Failed to read contract ABI", "contract", cc.Name, "path", cc.ABIPath, "error", err)
			} else {
				abiJSON = string(raw)
			}
		}

		h := contract.Bind(cc.Name, cc.Address, abiJSON, backend)
		if h.State() == contract.StateDegraded {
			slog.Warn("Contract binding degraded", "contract", cc.Name, "reason", h.Err())
		} else {
			slog.Info("Contract bound", "contract", cc.Name, "address", h.Address())
		}
		s.contracts[cc.Name] = h
		s.signed[cc.Name] = contract.ConnectSigner(h, adminSigner, chainID)
	}

	// 6. Retry worker
	if s.retryQueue != nil && cfg.Retry.Enabled {
		s.retrier = worker.NewRetrier(cfg.Retry, s.retryQueue, s.provisioner)
	}

	// 7. Health surface
	var dbPinger, queuePinger health.Pinger
	if s.db != nil {
		dbPinger = s.db
	}
	if s.redisClient != nil {
		queuePinger = s.redisClient
	}
	handles := make([]*contract.Handle, 0, len(s.contracts))
	for _, h := range s.contracts {
		handles = append(handles, h)
	}
	s.healthMon = health.NewMonitor(pool, dbPinger, queuePinger, handles, s.repo)
	s.healthServer = health.NewServer(s.healthMon, cfg.Server.Port)

	return s, nil
}

// Start brings up the health server, warms the RPC pool and launches the
// retry worker.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	// Warm-up probe in the background; startup never blocks on the chain.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := s.pool.Client(warmCtx); err != nil {
			s.log.Warn("RPC warm-up probe failed, pool stays disconnected", "error", err)
		} else {
			s.log.Info("RPC pool warmed", "endpoint", s.pool.ActiveURL(), "state", s.pool.State())
		}
	}()

	if s.retrier != nil {
		s.log.Info("Starting wallet retry worker", "interval", s.cfg.Retry.Interval)
		go s.retrier.Start(ctx)
	}

	return nil
}

// Stop shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping walletd...")

	s.pool.Close()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}

// Provisioner exposes the wallet provisioning operations.
func (s *Service) Provisioner() *provision.Provisioner {
	return s.provisioner
}

// Contract returns the read binding for a configured contract, nil when the
// name is unknown.
func (s *Service) Contract(name string) *contract.Handle {
	return s.contracts[name]
}

// SignedContract returns the admin-signed binding for a configured contract.
func (s *Service) SignedContract(name string) *contract.SignedHandle {
	return s.signed[name]
}

// Pool exposes the RPC endpoint pool, e.g. to reprobe before a critical
// transaction.
func (s *Service) Pool() *rpc.Pool {
	return s.pool
}

// Health exposes the health monitor, e.g. for embedding walletd in a larger
// process.
func (s *Service) Health() *health.Monitor {
	return s.healthMon
}
