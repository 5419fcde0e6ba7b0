package cmd

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/term"

	"transfer-core/internal/service/coordinator"
	"transfer-core/internal/service/counter"
	"transfer-core/internal/service/gateway"
	"transfer-core/internal/service/mq"
	"transfer-core/internal/service/state"
	"transfer-core/internal/service/wallet"
	"transfer-core/pkg/cache"
	"transfer-core/pkg/config"
	"transfer-core/pkg/database"
	"transfer-core/pkg/hdwallet"
	"transfer-core/pkg/keystore"
	"transfer-core/pkg/logger"
	"transfer-core/pkg/monitor"
	"transfer-core/pkg/telemetry"
	"transfer-core/pkg/utils/lock"
	"transfer-core/pkg/wallet/provider"
)

// app 一次命令执行所需的全部组件
type app struct {
	cfg         config.Config
	registry    *prometheus.Registry
	metrics     *monitor.BusinessMetrics
	chain       *ethclient.Client
	redis       *redis.Client
	store       cache.Cache
	counter     *counter.Store
	gateway     *gateway.Gateway
	coordinator *coordinator.Coordinator

	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close 逆序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp 按配置组装协调器
func newApp(ctx context.Context, cfg config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. Telemetry
	shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OtlpEndpoint)
	if err != nil {
		logger.Warn("tracer init failed, tracing disabled", zap.Error(err))
	} else {
		a.onClose(func() { _ = shutdown(context.Background()) })
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = monitor.NewBusinessMetrics(a.registry)

	// 2. Chain
	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return nil, fmt.Errorf("chain.contract_address %q is not an address", cfg.Chain.ContractAddress)
	}
	a.chain, err = ethclient.DialContext(ctx, cfg.Chain.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	a.onClose(a.chain.Close)

	// 3. Redis (存储、事件或锁用到时才连接)
	if cfg.Store.Type == "redis" || cfg.Events.Type == "redis" {
		a.redis, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = a.redis.Close() })
	}

	// 4. Durable store
	a.store, err = a.openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.counter = counter.NewStore(a.store)

	// 5. Wallet
	p, err := a.openProvider(ctx, cfg.Wallet)
	if err != nil {
		return nil, err
	}
	session := wallet.NewSession(p, a.metrics)

	// 6. Gateway
	parsed := gateway.DefaultABI()
	if cfg.Chain.AbiPath != "" {
		if parsed, err = gateway.LoadABI(cfg.Chain.AbiPath); err != nil {
			return nil, err
		}
	}
	a.gateway = gateway.New(
		common.HexToAddress(cfg.Chain.ContractAddress), a.chain, session,
		gateway.WithABI(parsed),
		gateway.WithPollInterval(cfg.Chain.ConfirmInterval),
	)

	// 7. Coordinator
	opts := []coordinator.Option{
		coordinator.WithMetrics(a.metrics),
		coordinator.WithConfirmTimeout(cfg.Chain.ConfirmTimeout),
	}
	if a.redis != nil {
		opts = append(opts, coordinator.WithLock(lock.NewRedisLock(a.redis)))
	} else {
		opts = append(opts, coordinator.WithLock(lock.NewLocalLock()))
	}
	producer, err := a.openProducer(cfg)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		opts = append(opts, coordinator.WithProducer(producer, cfg.Events.Topic))
	}

	a.coordinator = coordinator.New(state.NewStore(), session, a.gateway, a.counter, opts...)
	return a, nil
}

func (a *app) openStore(sc config.StoreConfig) (cache.Cache, error) {
	var (
		store cache.Cache
		err   error
	)
	switch sc.Type {
	case "", "badger":
		store, err = cache.NewBadgerCache(sc.Path)
	case "sqlite":
		store, err = cache.NewSQLiteCache(sc.Path)
	case "redis":
		// 本地 L1 + Redis L2
		store = cache.NewMultiLevelCache(cache.NewMemoryCache(0, 0), cache.NewRedisCache(a.redis))
	case "postgres":
		db, dbErr := database.ConnectPostgres(database.PostgresDSN(a.cfg.DB))
		if dbErr != nil {
			return nil, dbErr
		}
		store, err = cache.NewPostgresCache(db)
	case "memory":
		logger.Warn("store.type=memory, transaction count will not survive restarts")
		store = cache.NewMemoryCache(0, 0)
	default:
		return nil, fmt.Errorf("unknown store.type %q", sc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", sc.Type, err)
	}
	if closer, ok := store.(cache.Closer); ok {
		a.onClose(func() { _ = closer.Close() })
	}
	logger.Info("durable store ready", zap.String("type", sc.Type), zap.String("path", sc.Path))
	return store, nil
}

// openProvider 没有钱包时返回 nil，协调器会给出 ProviderMissing
func (a *app) openProvider(ctx context.Context, wc config.WalletConfig) (provider.Provider, error) {
	switch wc.Provider {
	case "none":
		return nil, nil
	case "rpc":
		p, err := provider.DialRPC(ctx, wc.RpcUrl)
		if err != nil {
			return nil, err
		}
		a.onClose(p.Close)
		return p, nil
	case "", "local":
		key, err := loadSigningKey(wc)
		if errors.Is(err, errNoKey) {
			logger.Warn("no wallet key configured, run `transfer-cli init` first")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		var approver provider.Approver = provider.NewTerminalApprover(os.Stdin, os.Stdout)
		if wc.AutoApprove {
			approver = provider.AutoApprover{}
		}
		local := provider.NewLocalProvider(key, a.chain, approver, provider.WithPermissionStore(a.store))
		logger.Info("local wallet loaded", zap.String("account", local.Address().Hex()))
		return local, nil
	default:
		return nil, fmt.Errorf("unknown wallet.provider %q", wc.Provider)
	}
}

func (a *app) openProducer(cfg config.Config) (mq.Producer, error) {
	switch cfg.Events.Type {
	case "", "none":
		return nil, nil
	case "redis":
		return mq.NewRedisProducer(a.redis), nil
	case "kafka":
		p := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Events.Topic)
		a.onClose(func() { _ = p.Close() })
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events.type %q", cfg.Events.Type)
	}
}

var errNoKey = errors.New("no wallet key configured")

// loadSigningKey 依次尝试 keystore 文件、明文助记词和私钥
func loadSigningKey(wc config.WalletConfig) (*ecdsa.PrivateKey, error) {
	path := wc.DerivationPath
	if path == "" {
		path = hdwallet.DefaultPath
	}

	// 1. Keystore
	if wc.KeystorePath != "" {
		if _, err := os.Stat(wc.KeystorePath); err == nil {
			password := wc.Password
			if password == "" {
				if password, err = promptPassword("Keystore password: "); err != nil {
					return nil, err
				}
			}
			mnemonic, err := keystore.Unlock(wc.KeystorePath, password)
			if err != nil {
				return nil, fmt.Errorf("unlock keystore: %w", err)
			}
			return deriveKey(mnemonic, path)
		}
	}

	// 2. 明文助记词 (仅开发环境)
	if wc.Mnemonic != "" {
		logger.Warn("using plaintext mnemonic from config, do not use in production")
		return deriveKey(wc.Mnemonic, path)
	}

	// 3. 私钥
	if wc.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(wc.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse wallet.private_key: %w", err)
		}
		return key, nil
	}
	return nil, errNoKey
}

func deriveKey(mnemonic, path string) (*ecdsa.PrivateKey, error) {
	w, err := hdwallet.FromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	return w.PrivateKey(path)
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: set WALLET_PASSWORD or run in a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
