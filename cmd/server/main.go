package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kerokerotur/banars-app/internal/authprovider"
	"github.com/kerokerotur/banars-app/internal/config"
	"github.com/kerokerotur/banars-app/internal/db"
	internalhttp "github.com/kerokerotur/banars-app/internal/http"
	"github.com/kerokerotur/banars-app/internal/invite"
	"github.com/kerokerotur/banars-app/internal/jobs"
	"github.com/kerokerotur/banars-app/internal/line"
	"github.com/kerokerotur/banars-app/internal/push"
	"github.com/kerokerotur/banars-app/internal/repository"
	"github.com/kerokerotur/banars-app/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	auth, err := authprovider.New(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Fatalf("auth provider init failed: %v", err)
	}

	verifier := line.NewVerifier(line.Config{
		JWKSURL:   cfg.LineJWKSURL,
		ChannelID: cfg.LineChannelID,
		Issuer:    cfg.LineIssuer,
	}, line.NewKeyCache())

	gateway := push.NewOneSignal(cfg.OneSignalAppID, cfg.OneSignalAPIKey, cfg.OneSignalBaseURL)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	invites := invite.NewService(store.Invites())
	signup := usecase.NewSignup(verifier, invites, store.Users(), store.Profiles(), store.PushTargets(), auth)
	login := usecase.NewLogin(verifier, store.Users(), store.PushTargets(), auth)
	getMe := usecase.NewGetMe(store.Users(), store.Profiles())
	attendance := usecase.NewRegisterAttendance(store.Attendance())
	remind := usecase.NewRemind(store.Attendance(), store.PushTargets(), gateway)

	server := internalhttp.NewServer(cfg.ServiceAuthToken, auth, invites, signup, login, getMe, attendance, remind)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartRemindJob(ctx, cfg, remind, redisClient)

	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
