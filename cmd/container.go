// cmd/container.go
//
// Composition root. Owns infrastructure (DB, Redis, object storage) and
// wires the generation queue with everything that feeds it.
package main

import (
	"context"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/ai/llm"
	"github.com/Abraxas-365/flashmoji/pkg/ai/providers/aianthropic"
	"github.com/Abraxas-365/flashmoji/pkg/ai/providers/aigemini"
	"github.com/Abraxas-365/flashmoji/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/flashmoji/pkg/assetx"
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardapi"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardinfra"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardsrv"
	"github.com/Abraxas-365/flashmoji/pkg/config"
	"github.com/Abraxas-365/flashmoji/pkg/fsx"
	"github.com/Abraxas-365/flashmoji/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/flashmoji/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/Abraxas-365/flashmoji/pkg/imagex/imagexopenai"
	"github.com/Abraxas-365/flashmoji/pkg/imagex/imagexreplicate"
	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/jobx/jobxalert"
	"github.com/Abraxas-365/flashmoji/pkg/jobx/jobxapi"
	"github.com/Abraxas-365/flashmoji/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/flashmoji/pkg/notifx/notifxses"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the composed services.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.ObjectStore
	S3Client   *s3.Client

	// Services
	Entries     cards.Repository
	Mirror      *jobxredis.Mirror
	Notifier    *notifx.Client
	Queue       *jobx.Queue
	Prompts     *cardsrv.PromptService
	Categorizer *cardsrv.Categorizer
	Images      *cardsrv.ImageService

	// Handlers
	QueueHandlers *jobxapi.Handlers
	CardHandlers  *cardapi.Handlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis, object storage
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	c.initDatabase()
	c.initRedis()
	c.initFileStorage()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initDatabase() {
	dbCfg := c.Config.Database
	if !dbCfg.Enabled() {
		c.Entries = cardinfra.NewMemoryRepository()
		logx.Warn("  ⚠️ DATABASE_URL not set, word entries are kept in memory")
		return
	}

	db, err := sqlx.Connect("postgres", dbCfg.URL)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	if dbCfg.AutoMigrate {
		if err := cardinfra.Migrate(context.Background(), db); err != nil {
			logx.Fatalf("Failed to migrate database: %v", err)
		}
		logx.Info("  ✅ Migrations applied")
	}
	c.Entries = cardinfra.NewPostgresRepository(db)
}

func (c *Container) initRedis() {
	redisCfg := c.Config.Redis
	if !redisCfg.Enabled() {
		logx.Info("  ℹ️ REDIS_ADDR not set, job history disabled")
		return
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis at %s: %v", redisCfg.Addr, err)
	}
	c.Mirror = jobxredis.NewMirror(c.Redis,
		jobxredis.WithTTL(redisCfg.TTL),
		jobxredis.WithHistoryLength(redisCfg.HistoryLen),
	)
	logx.Info("  ✅ Redis connected, job history enabled")
}

func (c *Container) initFileStorage() {
	st := c.Config.Storage

	switch st.Mode {
	case "s3":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(st.Region))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(cfg)
		c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, st.Bucket, "",
			fsxs3.WithRegion(st.Region),
			fsxs3.WithPublicBaseURL(st.PublicBaseURL),
		)
		logx.Infof("  ✅ S3 storage configured (bucket: %s, region: %s)", st.Bucket, st.Region)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(st.LocalDir, st.PublicBaseURL)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("  ✅ Local storage configured (path: %s)", localFS.GetBasePath())
	}

	if err := c.FileSystem.EnsureContainer(context.Background()); err != nil {
		logx.Fatalf("Failed to prepare image storage: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	model := c.newLLM()
	c.Prompts = cardsrv.NewPromptService(model, c.Entries,
		cardsrv.WithOverrides(cardsrv.NewOverrides(c.Config.LLM.OverridesPath)),
		cardsrv.WithBatchWorkers(c.Config.LLM.BatchWorkers),
	)
	c.Categorizer = cardsrv.NewCategorizer(model, c.Entries)
	logx.Infof("  ✅ Prompt services ready (llm: %s)", c.Config.LLM.Provider)

	c.initNotifier()
	c.initQueue()

	c.Images = cardsrv.NewImageService(c.Entries, c.Queue, c.Config.Queue.AwaitTimeout)

	// a nil *Mirror must not reach the handlers as a non-nil interface
	var history jobxapi.History
	if c.Mirror != nil {
		history = c.Mirror
	}
	c.QueueHandlers = jobxapi.NewHandlers(c.Queue, history, c.Config.Queue.AwaitTimeout)
	c.CardHandlers = cardapi.NewHandlers(c.Entries, c.Prompts, c.Categorizer, c.Images)
}

func (c *Container) newLLM() llm.LLM {
	l := c.Config.LLM

	switch l.Provider {
	case "openai":
		return aiopenai.NewOpenAIProvider(l.OpenAIKey, l.OpenAIModel)
	case "anthropic":
		return aianthropic.NewAnthropicProvider(l.AnthropicKey, l.AnthropicModel)
	default:
		p, err := aigemini.NewGeminiProvider(context.Background(), l.GeminiKey, aigemini.WithModel(l.GeminiModel))
		if err != nil {
			logx.Fatalf("Failed to initialize Gemini: %v", err)
		}
		return p
	}
}

func (c *Container) newGenerator() *imagex.Client {
	g := c.Config.ImageGen

	switch g.Provider {
	case "openai":
		var opts []imagexopenai.Option
		if g.OpenAIModel != "" {
			opts = append(opts, imagexopenai.WithModel(g.OpenAIModel))
		}
		if g.OpenAISize != "" {
			opts = append(opts, imagexopenai.WithSize(g.OpenAISize))
		}
		return imagex.NewClient(imagexopenai.NewProvider(g.OpenAIKey, opts...))
	default:
		opts := []imagexreplicate.Option{imagexreplicate.WithPollInterval(g.PollInterval)}
		if g.ReplicateModel != "" {
			opts = append(opts, imagexreplicate.WithModel(g.ReplicateModel))
		}
		p, err := imagexreplicate.NewProvider(g.ReplicateToken, opts...)
		if err != nil {
			logx.Fatalf("Failed to initialize Replicate: %v", err)
		}
		return imagex.NewClient(p)
	}
}

func (c *Container) initNotifier() {
	n := c.Config.Notifx

	switch n.Provider {
	case "ses":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(n.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config for SES: %v", err)
		}
		c.Notifier = notifx.NewClient(notifxses.NewProvider(ses.NewFromConfig(cfg), n.FromAddress), n.FromAddress)
	default:
		c.Notifier = notifx.NewClient(notifxconsole.NewProvider(), n.FromAddress)
	}
	logx.Infof("  ✅ Notifier ready (provider: %s)", n.Provider)
}

func (c *Container) initQueue() {
	q := c.Config.Queue
	gen := c.newGenerator()

	var sinks []jobx.EventSink
	if c.Mirror != nil {
		sinks = append(sinks, c.Mirror)
	}
	if c.Config.Notifx.AlertsEnabled() {
		alerts, err := jobxalert.New(c.Notifier, c.Config.Notifx.AlertRecipients,
			jobxalert.WithInterval(c.Config.Notifx.AlertInterval),
		)
		if err != nil {
			logx.Fatalf("Failed to set up failure alerts: %v", err)
		}
		sinks = append(sinks, alerts)
		logx.Infof("  ✅ Failure alerts to %s", strings.Join(c.Config.Notifx.AlertRecipients, ", "))
	}

	publisher := assetx.NewPublisher(c.FileSystem,
		assetx.WithKeyPrefix(c.Config.Storage.KeyPrefix),
		assetx.WithMaxBytes(c.Config.Storage.MaxBytes),
	)

	c.Queue = jobx.New(gen, publisher, c.Entries,
		jobx.WithMaxRetries(q.MaxRetries),
		jobx.WithRetryBackoff(q.RetryBackoff),
		jobx.WithInterJobDelay(q.InterJobDelay),
		jobx.WithIdleInterval(q.IdleInterval),
		jobx.WithAttemptTimeout(q.AttemptTimeout),
		jobx.WithPersistTimeout(q.PersistTimeout),
		jobx.WithMarkProcessing(),
		jobx.WithSinks(sinks...),
	)
	logx.Infof("  ✅ Generation queue ready (provider: %s, retries: %d)", gen.ProviderName(), q.MaxRetries)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	if !c.Config.Queue.ResumeOnStart {
		return
	}
	n, err := c.Images.Resume(ctx)
	if err != nil {
		logx.WithError(err).Warn("Failed to resume unfinished image jobs")
		return
	}
	logx.Infof("  ✅ Resumed %d unfinished image jobs", n)
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			logx.Errorf("Error stopping queue: %v", err)
		} else {
			logx.Info("  ✅ Queue stopped")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
