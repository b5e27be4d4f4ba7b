package main

import (
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"Tutorhub/internal/api/middleware"
	"Tutorhub/internal/api/routes"
	"Tutorhub/internal/config"
	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/messaging"
	"Tutorhub/internal/core/subjects"
	"Tutorhub/internal/core/tutors"
	"Tutorhub/internal/core/users"
	postgresRepo "Tutorhub/internal/db/postgres"
	"Tutorhub/internal/gateway"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Connected to database")

	// Run migrations
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Failed to set goose dialect:", err)
	}

	if err := goose.Up(db, "internal/db/migrations"); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	log.Println("Migrations completed successfully")

	// Repositories
	userRepo := postgresRepo.NewUserRepository(db)
	clientRepo := postgresRepo.NewClientRepository(db)
	tokenRepo := postgresRepo.NewTokenRepository(db)
	subjectRepo := postgresRepo.NewSubjectRepository(db)
	profileRepo := postgresRepo.NewTutorProfileRepository(db)
	threadRepo := postgresRepo.NewThreadRepository(db)
	messageRepo := postgresRepo.NewMessageRepository(db)

	// Services
	userService := users.NewUserService(userRepo)
	authService := auth.NewService(clientRepo, tokenRepo, userService, cfg.AccessTokenTTL, cfg.GrantCodeTTL)
	subjectService := subjects.NewSubjectService(subjectRepo)
	tutorService := tutors.NewTutorService(userService, profileRepo, subjectRepo)

	// The message router delivers over live connections, so the registry
	// and its notifier come first; the gateway closes the loop.
	registry := gateway.NewRegistry()
	messagingService := messaging.NewService(userService, threadRepo, messageRepo, gateway.NewNotifier(registry))
	gw := gateway.NewGateway(authService, messagingService, registry, cfg.IdentifyTimeout)

	authMW := middleware.NewAuthMiddleware(authService)

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	r.Use(rateLimiter.Middleware)

	r.Mount("/oauth", routes.OAuthRoutes(authService, authMW))
	r.Mount("/", routes.UserRoutes(userService, authMW))
	r.Mount("/subject", routes.SubjectRoutes(subjectService, authMW))
	r.Mount("/student", routes.StudentRoutes(userService, subjectService, messagingService, authMW))
	r.Mount("/tutor", routes.TutorRoutes(tutorService, messagingService, authMW))
	r.Mount("/admin", routes.AdminRoutes(tutorService, authMW))
	r.Mount("/message", routes.MessagingRoutes(messagingService, authMW))

	routes.RegisterMetaRoutes(r)

	r.Get("/ws", gw.HandleWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Printf("Tutorhub starting on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
