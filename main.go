package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mehdi856/Chat-Project/global"
	"github.com/Mehdi856/Chat-Project/logger"
	mwsecurity "github.com/Mehdi856/Chat-Project/middleware/security"
	chatmod "github.com/Mehdi856/Chat-Project/module/chat"
	usermod "github.com/Mehdi856/Chat-Project/module/user"
	usersvc "github.com/Mehdi856/Chat-Project/module/user/service"
	"github.com/Mehdi856/Chat-Project/service/chat"
	"github.com/Mehdi856/Chat-Project/service/kafka"
	"github.com/Mehdi856/Chat-Project/service/metrics"
	"github.com/Mehdi856/Chat-Project/service/storage"
	"github.com/Mehdi856/Chat-Project/tools/crypto"
	"github.com/Mehdi856/Chat-Project/tools/errs"
	"github.com/Mehdi856/Chat-Project/tools/safe"
	jwtlib "github.com/Mehdi856/Chat-Project/tools/security"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongo, err := storage.Dial(dialCtx, storage.MongoConfig{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	cancel()
	if err != nil {
		logger.Errorf("mongo: %v", err)
		os.Exit(1)
	}
	defer mongo.Close(context.Background())

	messages := storage.NewMessages(mongo)
	users := storage.NewUsers(mongo)
	contacts := storage.NewContacts(mongo)
	groups := storage.NewGroups(mongo)
	blobs, err := storage.NewBlobs(mongo, cfg.BlobBaseURL)
	if err != nil {
		logger.Errorf("blob store: %v", err)
		os.Exit(1)
	}
	ensureIndexes(ctx, messages, users, contacts, groups)

	codec, err := crypto.NewCodec([]byte(cfg.AESSecret))
	if err != nil {
		logger.Errorf("message codec: %v", err)
		os.Exit(1)
	}

	jwtOpts := jwtlib.Options{Secret: []byte(cfg.JWTSecret), Alg: "HS256", TTL: cfg.JWTTTL}
	accounts := usersvc.New(users, jwtOpts)

	var store chat.MessageStore = messages
	if cfg.Kafka.Enabled {
		kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, GroupID: cfg.Kafka.GroupID}
		producer, err := kafka.NewProducer(kcfg)
		if err != nil {
			logger.Errorf("kafka producer: %v", err)
			os.Exit(1)
		}
		defer producer.Close()

		archiver, err := kafka.NewArchiver(kcfg, messages)
		if err != nil {
			logger.Errorf("kafka archiver: %v", err)
			os.Exit(1)
		}
		safe.SafeGo(func() {
			if err := archiver.Run(ctx); err != nil {
				logger.Errorf("archiver stopped: %v", err)
			}
		})
		store = producer
	}

	var presence chat.Presence
	if cfg.Redis.Enabled {
		rdb, err := storage.DialRedis(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Errorf("redis: %v", err)
			os.Exit(1)
		}
		defer rdb.Close()
		presence = storage.NewPresence(rdb, cfg.GatewayID, cfg.Redis.PresenceTTL)
	}

	gateway := chat.NewServer(chat.Options{
		Auth:             accounts,
		Store:            store,
		Groups:           groups,
		Presence:         presence,
		Codec:            codec,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/ws", gateway.HandleWS(chat.WSOptions{WriteTimeout: cfg.WriteTimeout}))
	r.GET("/files/:id", serveBlob(blobs))

	authed := r.Group("/", mwsecurity.Middleware(jwtOpts))
	usermod.NewHandler(accounts, users, blobs, gateway.Router()).Mount(r, authed)
	chatmod.NewHandler(messages, contacts, groups, codec).Mount(authed)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	safe.SafeGo(func() {
		logger.Infof("gateway %s listening on %s", cfg.GatewayID, cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

type indexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(ctx context.Context, stores ...indexEnsurer) {
	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, s := range stores {
		if err := s.EnsureIndexes(idxCtx); err != nil {
			logger.Warnf("ensure indexes: %v", err)
		}
	}
}

func serveBlob(blobs *storage.Blobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		stream, contentType, err := blobs.Open(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errs.ErrRecordNotFind.Is(err) || errs.ErrArgs.Is(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "open file failed"})
			return
		}
		defer stream.Close()

		c.Header("Content-Type", contentType)
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, stream)
	}
}
