package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cachememory "github.com/questlabs/walletgate/adapters/cache/memory"
	cacheredis "github.com/questlabs/walletgate/adapters/cache/redis"
	"github.com/questlabs/walletgate/adapters/events"
	"github.com/questlabs/walletgate/adapters/rewards"
	storememory "github.com/questlabs/walletgate/adapters/store/memory"
	"github.com/questlabs/walletgate/adapters/store/postgres"
	"github.com/questlabs/walletgate/adapters/tokenizer"
	"github.com/questlabs/walletgate/config"
	"github.com/questlabs/walletgate/internal/logger"
	"github.com/questlabs/walletgate/ports"
	"github.com/questlabs/walletgate/service"
	transport "github.com/questlabs/walletgate/transport/http"
)

const tokenIssuer = "walletgate"

const shutdownGrace = 10 * time.Second

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "walletgate",
		Short:        "Wallet challenge-response authentication service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	var redisClient *redis.Client
	if cfg.Cache.Kind == "redis" || cfg.Events.Enabled {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var challengeCache ports.ChallengeCache
	if cfg.Cache.Kind == "redis" {
		challengeCache = cacheredis.New(redisClient)
	} else {
		challengeCache = cachememory.New(cfg.ChallengeTTL())
	}

	var (
		users    ports.UserStore
		devices  ports.DeviceStore
		sessions ports.SessionStore
	)
	if cfg.Storage.Driver == "postgres" {
		pool, err := postgres.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		users = postgres.NewUserStore(pool)
		devices = postgres.NewDeviceStore(pool)
		sessions = postgres.NewSessionStore(pool)
	} else {
		log.Warn("using in-memory stores; state will not survive a restart")
		users = storememory.NewUserStore()
		devices = storememory.NewDeviceStore()
		sessions = storememory.NewSessionStore()
	}

	publisher, err := buildPublisher(cfg, redisClient)
	if err != nil {
		return err
	}

	signKey, err := loadSigningKey(cfg, log)
	if err != nil {
		return err
	}
	signer := tokenizer.NewJWTTokenizer(signKey, tokenIssuer)

	minter, err := buildMinter(cfg, log)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(
		service.NewChallengeIssuer(challengeCache, cfg.ChallengeTTL(), log),
		service.NewSignatureVerifier(),
		service.NewDeviceFingerprint(),
		service.NewDeviceBindingGuard(devices, cfg.Auth.DeviceGuard.Bypass, log),
		service.NewAccountResolver(users, cfg.Auth.Chain, log),
		service.NewSessionTokenIssuer(signer, sessions, users, cfg.AccessTTL(), cfg.RefreshTTL(), log),
		signer,
		minter,
		publisher,
		log,
	)

	router := transport.SetupRouter(authService, log)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate requires the postgres storage driver")
	}

	pool, err := postgres.Connect(ctx, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}

func buildPublisher(cfg *config.Config, redisClient *redis.Client) (ports.EventPublisher, error) {
	if !cfg.Events.Enabled || redisClient == nil {
		return events.NewNoopPublisher(), nil
	}
	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	return events.NewWatermillPublisher(pub), nil
}

// loadSigningKey parses the configured access-token key, or generates
// an ephemeral one for non-prod profiles.
func loadSigningKey(cfg *config.Config, log *zap.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.Auth.SigningKey == "" {
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("auth.signing_key is required in prod")
		}
		log.Warn("no signing key configured, generating an ephemeral one")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	der, err := base64.StdEncoding.DecodeString(cfg.Auth.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

func buildMinter(cfg *config.Config, log *zap.Logger) (ports.RewardMinter, error) {
	if !cfg.Rewards.Enabled {
		return rewards.NewNoopMinter(log), nil
	}

	client, err := ethclient.Dial(cfg.Rewards.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial reward rpc: %w", err)
	}
	key, err := ethcrypto.HexToECDSA(cfg.Rewards.SignerKey)
	if err != nil {
		return nil, fmt.Errorf("parse reward signer key: %w", err)
	}
	amount, err := decimal.NewFromString(cfg.Rewards.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse reward amount: %w", err)
	}
	return rewards.NewEthMinter(
		client,
		common.HexToAddress(cfg.Rewards.Contract),
		key,
		big.NewInt(cfg.Rewards.ChainID),
		amount,
		log,
	)
}
