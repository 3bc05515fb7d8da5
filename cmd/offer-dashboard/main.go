// cmd/offer-dashboard/main.go
package main

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"merchdash/internal/pkg/bootstrap"
	"merchdash/internal/pkg/httpclient"
	"merchdash/internal/pkg/metrics"
	"merchdash/internal/pkg/mq"
	"merchdash/internal/pkg/redis"
	"merchdash/internal/service/offer/application"
	"merchdash/internal/service/offer/domain"
	"merchdash/internal/service/offer/domain/port"
	"merchdash/internal/service/offer/infrastructure"
	"merchdash/internal/service/offer/infrastructure/adapter"
	"merchdash/internal/service/offer/interfaces"
)

const serviceName = "offer-dashboard"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// 关停时按打开的逆序关闭
	var closers []io.Closer

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)

			// 1. 数据库
			db, err := infrastructure.OpenMySQL(appCtx.Config.Infra.MySQL)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to connect to mysql")
			}
			sqlDB, err := db.DB()
			if err != nil {
				log.Fatal().Err(err).Msg("failed to get sql.DB")
			}
			closers = append(closers, sqlDB)
			offerRepo := infrastructure.NewGormOfferRepository(db)
			rangeRepo := infrastructure.NewGormRangeRepository(db)

			// 2. 向导草稿：配置了 Redis 时多实例共享，否则放在进程内
			var drafts domain.DraftStore
			if addrs := appCtx.Config.Infra.Redis.Addrs; addrs != "" {
				rdb, err := redis.NewClient(addrs)
				if err != nil {
					log.Fatal().Err(err).Msg("failed to connect to redis")
				}
				closers = append(closers, rdb)
				drafts = infrastructure.NewRedisDraftStore(rdb, appCtx.Config.Wizard.DraftTTL)
			} else {
				log.Warn().Msg("REDIS_ADDRS not set, wizard drafts are kept in memory")
				drafts = infrastructure.NewMemoryDraftStore(appCtx.Config.Wizard.DraftTTL)
			}

			// 3. 领域事件
			var publisher port.OfferEventPublisher = infrastructure.NoopOfferPublisher{}
			if brokers := appCtx.Config.Infra.Kafka.Brokers; brokers != "" {
				writer := mq.NewKafkaWriter(strings.Split(brokers, ","), appCtx.Config.Infra.Kafka.OfferTopic)
				closers = append(closers, writer)
				publisher = infrastructure.NewKafkaOfferPublisher(writer)
			}

			// 4. 商品范围来源
			var ranges domain.RangeFinder = rangeRepo
			if catalog := appCtx.Config.Infra.Catalog; catalog.Source == bootstrap.CatalogSourceRemote {
				var resolver httpclient.Resolver
				if appCtx.Nacos != nil {
					resolver = appCtx.Nacos
				}
				ranges = adapter.NewRangeHTTPAdapter(httpclient.NewClient(tracer, resolver), catalog.BaseURL, catalog.ServiceName, catalog.Timeout)
			}

			wizardMetrics := metrics.NewWizardMetrics(prometheus.DefaultRegisterer)
			wizard := application.NewWizardService(offerRepo, ranges, drafts, publisher, wizardMetrics, tracer)
			offers := application.NewOfferService(offerRepo, tracer)

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			interfaces.NewOfferHandler(wizard, offers, appCtx.Config.Wizard.CookieSecure).RegisterRoutes(appCtx.Mux)
			// 远端目录模式下由目录服务维护 Range，本服务不再暴露管理接口
			if appCtx.Config.Infra.Catalog.Source == bootstrap.CatalogSourceLocal {
				interfaces.NewRangeHandler(application.NewRangeService(rangeRepo, tracer)).RegisterRoutes(appCtx.Mux)
			}
		},
		OnShutdown: func(ctx context.Context) {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(); err != nil {
					log.Error().Err(err).Msg("Error closing resource")
				}
			}
		},
	})
}
