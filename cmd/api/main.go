package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"dydl.local/gee"
	"dydl.local/gee/middleware"
	"dydl.local/internal/app/douyin"
	"dydl.local/internal/app/douyin/fetchmeta"
	"dydl.local/internal/app/douyin/httpapi"
	dlproxy "dydl.local/internal/app/douyin/proxy"
	"dydl.local/internal/app/douyin/resolve"
	"dydl.local/internal/app/douyin/stats"
	platformcache "dydl.local/internal/platform/cache"
	"dydl.local/internal/platform/config"
	"dydl.local/internal/platform/db"
	"dydl.local/internal/platform/httpmiddleware"
	"dydl.local/internal/platform/httpserver"
	"dydl.local/internal/platform/metrics"
	"dydl.local/internal/platform/migrate"
	"dydl.local/internal/platform/ratelimit"
	"dydl.local/internal/platform/trace"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	slog.SetDefault(slog.New(h))

	//Redis：解析缓存、配额、防刷限流都靠它
	redisClient, errRedis := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if errRedis != nil {
		log.Fatal(errRedis)
	}
	defer redisClient.Close()

	//防刷限流器（按路由）
	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewLimiter(redisClient)
	} else {
		slog.Warn("RateLimit disabled by config", "RATELIMIT_ENABLED", false)
	}

	//解析配额（按 IP 的滑动窗口，次数少、窗口长）
	var window *ratelimit.Window
	if cfg.RateLimitEnabled {
		windowStore := ratelimit.NewRedisStore(redisClient, "rq:", cfg.ResolveWindow)
		window = ratelimit.NewWindow(windowStore, cfg.ResolveLimit, cfg.ResolveWindow)
	}

	//解析结果缓存 L1 本地 + L2 Redis
	localCache, errLocal := resolve.NewLocalCache(10000, 5*time.Minute)
	if errLocal != nil {
		log.Fatal(errLocal)
	}
	resolveCache := resolve.NewCache(redisClient, localCache, cfg.ResolveCacheTTL)
	defer resolveCache.Close()

	resolver := resolve.New(resolve.Options{
		ShortHost:         cfg.ShortHost,
		PlatformHost:      cfg.PlatformHost,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.ResolveTimeout,
		ProbeTimeout:      cfg.ProbeTimeout,
		UnshortenServices: cfg.UnshortenServices,
		Cache:             resolveCache,
	})

	//DB：只有解析统计用，默认不开
	var dbPool *pgxpool.Pool
	if cfg.StatsEnabled {
		dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		dbp, errDB := db.New(dbCtx, cfg.DBDSN)
		if errDB != nil {
			cancel()
			log.Fatal(errDB)
		}
		if err := dbp.Ping(dbCtx); err != nil {
			cancel()
			log.Fatal(err)
		}
		cancel()
		dbPool = dbp
		defer dbPool.Close()
		slog.Info("数据库连接成功")

		if cfg.MigrateEnabled {
			mCtx, mCancel := context.WithTimeout(context.Background(), 30*time.Second)
			res, err := migrate.Up(mCtx, dbPool, migrate.Options{})
			mCancel()
			if err != nil {
				log.Fatal(err)
			}
			slog.Info("migrations applied", "dir", res.Dir, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
		}
	}

	//初始化统计收集器（根据配置选择 Channel 或 Kafka）
	var collector stats.Collector
	var kafkaConsumer *stats.KafkaConsumer
	var channelConsumer *stats.Consumer
	if cfg.StatsEnabled {
		if cfg.KafkaEnabled {
			slog.Info("使用 Kafka 收集解析统计", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
			collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
			kafkaConsumer = stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, dbPool)
		} else {
			slog.Info("使用 Channel 收集解析统计")
			channelCollector := stats.NewChannelCollector(10000)
			collector = channelCollector
			channelConsumer = stats.NewConsumer(dbPool, channelCollector)
		}
	}

	metrics.Init()

	var shutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown = trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName(), httpmiddleware.CORS())

	api := r.Group("/api")
	httpapi.RegisterAPIRoutes(api, httpapi.Deps{
		Classifier: douyin.NewClassifier(cfg.ShortHost),
		Resolver:   resolver,
		Selector:   douyin.NewSelector(cfg.PlatformHost),
		Meta:       fetchmeta.New(cfg.UpstreamAPIBase, cfg.UserAgent, cfg.UpstreamTimeout),
		Proxy:      dlproxy.New(cfg.UserAgent, cfg.Referer),
		Window:     window,
		Collector:  collector,
	}, limiter)

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Redis Ping Err"))
			return
		}
		if dbPool != nil {
			if err := dbPool.Ping(ctx); err != nil {
				w.WriteHeader(500)
				w.Write([]byte("DB Ping Err"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr, // 推荐：127.0.0.1:6060
		Handler:           adminMux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errch := make(chan error, 2)

	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(publicSrv, cfg.ShutdownTimeout, stopCtx)
	}()
	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(adminSrv, cfg.ShutdownTimeout, stopCtx)
	}()

	// 启动统计 consumer（如果启用）
	if kafkaConsumer != nil {
		go kafkaConsumer.Run(stopCtx)
		defer kafkaConsumer.Close()
	}
	if channelConsumer != nil {
		go channelConsumer.Run(stopCtx)
	}
	if collector != nil {
		defer collector.Close()
	}

	err := <-errch
	if err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		log.Fatal(err)
	}

	stop()
	<-errch
}
