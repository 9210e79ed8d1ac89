package wire

import (
	"PetCare/internal/api"
	"PetCare/internal/api/config"
	"PetCare/internal/api/handler"
	"PetCare/internal/hub"
	"PetCare/internal/job"
	croncfg "PetCare/internal/pkg/cron"
	"PetCare/internal/pkg/database"
	"PetCare/internal/pkg/directory"
	"PetCare/internal/pkg/kafka"
	mongopkg "PetCare/internal/pkg/mongo"
	redispkg "PetCare/internal/pkg/redis"
	"PetCare/internal/repository"
	"PetCare/internal/service"
	"fmt"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// App 装配完成的应用，持有需要优雅关闭的组件
type App struct {
	Router    *gin.Engine
	Cron      *croncfg.Manager
	ChatSvc   service.ChatService
	NotifySvc service.NotifyService
}

// InitApp 按依赖顺序手工装配整个应用
func InitApp() (*App, error) {
	cfg := config.Cfg

	db, err := database.NewGormDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init mysql: %w", err)
	}

	mongoDB, err := mongopkg.InitMongo(cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("init mongo: %w", err)
	}

	if err := redispkg.InitRedis(cfg.Redis); err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	// Kafka 未配置时离线通知降级为空操作
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(&cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
	} else {
		log.Warn("Kafka 未配置，离线通知已停用")
	}

	roomRepo := repository.NewChatRoomRepo(db)
	messageRepo := mongopkg.NewMessageRepo(mongoDB)
	dirClient := directory.NewClient(cfg.Directory)

	registry := hub.NewRegistry()
	publisher := service.PublisherFunc(redispkg.Publish)

	notifySvc := service.NewNotifyService(producer)
	chatSvc := service.NewChatService(roomRepo, messageRepo, registry, publisher, notifySvc, dirClient)
	supportSvc := service.NewSupportService(roomRepo, publisher, dirClient)

	h := hub.NewHub(registry, chatSvc, supportSvc, roomRepo)

	router := api.NewRouter(&api.Handlers{
		Chat:    handler.NewChatHandler(chatSvc),
		Support: handler.NewSupportHandler(supportSvc),
		Ws:      handler.NewWsHandler(h),
	})

	cronMgr := croncfg.NewManager()
	reminderSpec := cfg.Support.ReminderCron
	if reminderSpec == "" {
		reminderSpec = "*/5 * * * *"
	}
	reminder := job.NewSupportReminderJob(roomRepo, supportSvc, cfg.Support.ReminderAfterMins)
	if err := cronMgr.Register(reminderSpec, "support_reminder", reminder.Run); err != nil {
		return nil, fmt.Errorf("register reminder job: %w", err)
	}

	return &App{
		Router:    router,
		Cron:      cronMgr,
		ChatSvc:   chatSvc,
		NotifySvc: notifySvc,
	}, nil
}
