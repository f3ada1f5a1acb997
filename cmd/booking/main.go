package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lodging_booking/pkg/booking"
	"lodging_booking/pkg/circuitbreaker"
	"lodging_booking/pkg/config"
	"lodging_booking/pkg/database"
	"lodging_booking/pkg/lock"
	"lodging_booking/pkg/messaging"
	"lodging_booking/pkg/models"
	"lodging_booking/pkg/payment"
	"lodging_booking/pkg/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	db         *gorm.DB
	svc        *booking.Service
	webhooks   payment.WebhookParser
	adminToken string
)

func main() {
	log.Println("Starting booking service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err = database.InitBookingDB(cfg.DSN())
	if err != nil {
		log.Fatalf("Database init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := newBroker(ctx, cfg)
	svc = booking.NewService(db, newLocker(cfg), newGateway(cfg), newPublisher(ctx, broker), booking.Config{
		Location:            cfg.Location,
		HoldTTL:             cfg.HoldTTL,
		Currency:            cfg.Currency,
		LegacySelfExclusion: cfg.LegacySelfExclusion,
	})
	adminToken = cfg.AdminToken

	if broker != nil {
		defer broker.Close()
		consumer := messaging.NewConsumer(broker, messaging.PaymentOutcomesQueue, "booking-service")
		consumer.ConsumePayments(ctx, handlePaymentEvent)
	}

	if cfg.SeedData {
		seedTestData()
	}

	go svc.RunSweeper(ctx, cfg.SweepInterval)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: setupRouter()}
	go func() {
		log.Printf("Booking service starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down booking service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func setupRouter() *gin.Engine {
	server := gin.Default()

	api := server.Group("/api/v1")
	api.GET("/places/:placeId", getPlace)
	api.GET("/places/:placeId/availability", getAvailability)

	api.GET("/reservations", listReservations)
	api.POST("/reservations", createReservation(models.ChannelDirect))
	api.POST("/reservations/bank-transfer", createReservation(models.ChannelBankTransfer))
	api.GET("/reservations/:uid", getReservation)
	api.POST("/reservations/:uid/checkout", startCheckout)
	api.POST("/reservations/:uid/slip", submitSlip)
	api.POST("/reservations/:uid/cancel", cancelReservation)

	api.POST("/payments/webhook", paymentWebhook)

	admin := api.Group("/admin", requireAdmin)
	admin.POST("/reservations/:uid/review", reviewSlip)
	admin.POST("/sweep", runSweep)

	server.GET("/manage/health", healthCheck)
	return server
}

func newLocker(cfg *config.Config) lock.Locker {
	if cfg.RedisURL == "" {
		log.Println("REDIS_URL not set, using in-process admission lock")
		return lock.NewKeyedMutex()
	}
	client, err := lock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis ping failed: %v", err)
	}
	log.Println("Using redis admission lock")
	return lock.NewRedisLocker(client, 10*time.Second)
}

func newGateway(cfg *config.Config) booking.Gateway {
	breaker := circuitbreaker.New(5, 30*time.Second)
	if cfg.StripeSecretKey == "" {
		log.Println("STRIPE_SECRET_KEY not set, using mock payment gateway")
		return payment.NewBreakerGateway(payment.NewMockGateway(), breaker)
	}
	stripe := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	webhooks = stripe
	return payment.NewBreakerGateway(stripe, breaker)
}

// newBroker starts the connection loop in the background. Events published
// before the first connect land in the retry queue.
func newBroker(ctx context.Context, cfg *config.Config) *messaging.RabbitMQClient {
	if cfg.RabbitMQURL == "" {
		log.Println("RABBITMQ_URL not set, booking events are only logged")
		return nil
	}
	client := messaging.NewRabbitMQClient(messaging.NewRabbitMQConfig(cfg.RabbitMQURL, cfg.RabbitMQExchange))
	go client.Run(ctx)
	return client
}

// newPublisher returns nil without a broker so the service logs events.
func newPublisher(ctx context.Context, broker *messaging.RabbitMQClient) booking.Publisher {
	if broker == nil {
		return nil
	}
	retrying := queue.NewRetryingPublisher(messaging.NewPublisher(broker), queue.NewQueue(), 5, 2*time.Second)
	go retrying.Drain(ctx, 5*time.Second)
	return retrying
}

func seedTestData() {
	var count int64
	if err := db.Model(&models.Place{}).Count(&count).Error; err != nil {
		log.Printf("Seed skipped: %v", err)
		return
	}
	if count > 0 {
		return
	}

	places := []models.Place{
		{
			Name:         "Riverside Guesthouse",
			City:         "Chiang Mai",
			NightlyPrice: 1200,
			Rooms: []models.Room{
				{Name: "Garden Double", NightlyPrice: 1500},
				{Name: "River Suite", NightlyPrice: 2400},
			},
		},
		{
			Name:         "Hillside Cabin",
			City:         "Pai",
			NightlyPrice: 900,
		},
	}
	for i := range places {
		if err := db.Create(&places[i]).Error; err != nil {
			log.Printf("Failed to seed place %s: %v", places[i].Name, err)
		}
	}
	log.Println("Booking test data seeded")
}
