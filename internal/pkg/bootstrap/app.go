// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/pkg/nacos"
	"merchdash/internal/pkg/tracing"
	"merchdash/internal/pkg/utils"
)

var nacosConfigCenter *nacos.ConfigCenter

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未配置 Nacos 时为 nil
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	OnShutdown       func(ctx context.Context)
}

// Init 加载配置并初始化日志。配置来源优先级：Nacos 配置中心 > CONFIG_FILE > 默认值，
// 环境变量始终最后覆盖。
func Init() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setCurrentConfig(cfg)
	logger.Init(cfg.App.LogLevel, cfg.App.LogPretty)
	log.Info().Str("service", cfg.App.Name).Int("port", cfg.App.Port).Msg("Configuration loaded")
}

func loadConfig() (*Config, error) {
	var (
		cfg *Config
		err error
	)

	nacosAddrs := getEnv("NACOS_SERVER_ADDRS", "")
	dataID := getEnv("NACOS_DATA_ID", "")
	switch {
	case nacosAddrs != "" && dataID != "":
		cfg, err = loadFromNacos(nacosAddrs, dataID)
	case getEnv("CONFIG_FILE", "") != "":
		cfg, err = LoadFile(getEnv("CONFIG_FILE", ""))
	default:
		cfg = Default()
	}
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func loadFromNacos(addrs, dataID string) (*Config, error) {
	serverConfigs, err := nacos.ParseServerAddrs(addrs)
	if err != nil {
		return nil, err
	}
	clientConfig := nacos.NewClientConfig(getEnv("NACOS_NAMESPACE", ""))
	center, err := nacos.NewConfigCenter(serverConfigs, &clientConfig, dataID, getEnv("NACOS_GROUP", "DEFAULT_GROUP"))
	if err != nil {
		return nil, err
	}
	content, err := center.Fetch()
	if err != nil {
		return nil, err
	}
	cfg, err := Parse([]byte(content))
	if err != nil {
		return nil, err
	}

	// 热更新：只替换快照，已经建立的连接（数据库、Redis）不会重建
	if err := center.Watch(func(content string) {
		next, err := Parse([]byte(content))
		if err == nil {
			err = ApplyEnv(next, os.LookupEnv)
		}
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			log.Error().Err(err).Msg("Ignoring invalid config pushed by Nacos")
			return
		}
		setCurrentConfig(next)
		logger.SetLevel(next.App.LogLevel)
		log.Info().Str("data_id", dataID).Msg("Configuration reloaded from Nacos")
	}); err != nil {
		log.Warn().Err(err).Msg("Could not watch Nacos config, hot reload disabled")
	}

	nacosConfigCenter = center
	return cfg, nil
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.ServerAddrs != "" {
		serverConfigs, err := nacos.ParseServerAddrs(cfg.Infra.Nacos.ServerAddrs)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid Nacos server address format")
		}
		clientConfig := nacos.NewClientConfig(cfg.Infra.Nacos.Namespace)
		namingClient, err = nacos.NewNacosClientWithConfigs(serverConfigs, &clientConfig, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("Shutting down service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 按启动的逆序清理
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		if nacosConfigCenter != nil {
			nacosConfigCenter.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		if info.OnShutdown != nil {
			info.OnShutdown(shutdownCtx)
		}
		// 最后关闭 Tracer Provider，确保关停过程中的 span 也能被发送
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Str("service", info.ServiceName).Msg("service stopped with error")
	}
	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down")
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
