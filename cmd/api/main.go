package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/handler"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/notifier"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/Dan9191/card-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, utils.NewGenerator(), logger, cfg)
	h := handler.NewHandler(svc)

	// Expiry reminder job
	sender := email.NewSender(cfg, logger)
	reminders := notifier.New(repo, sender, logger)
	if err := reminders.Start(); err != nil {
		logger.Fatalf("Failed to start expiry reminder job: %v", err)
	}
	defer reminders.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/cards", h.GetUserCard).Methods("GET")
	authRouter.HandleFunc("/cards", h.CreateCard).Methods("POST")
	authRouter.HandleFunc("/cards/reissue", h.ReissueCard).Methods("PUT")
	authRouter.HandleFunc("/cards/renew", h.RenewCard).Methods("PUT")
	authRouter.HandleFunc("/cards/balance/top-up", h.TopUp).Methods("PATCH")
	authRouter.HandleFunc("/cards/balance/withdrawal", h.Withdraw).Methods("PATCH")
	authRouter.HandleFunc("/cards/transfer", h.Transfer).Methods("PATCH")
	authRouter.HandleFunc("/cards/statement", h.Statement).Methods("GET")
	authRouter.HandleFunc("/transactions", h.Transactions).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
