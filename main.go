// main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/config"
	"github.com/ariebrainware/agendamento/endpoint"
	"github.com/ariebrainware/agendamento/middleware"
	"github.com/ariebrainware/agendamento/model"
	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectMySQL()
	if err != nil {
		log.Fatalf("Error connecting to MySQL: %v", err)
	}
	if err := db.AutoMigrate(&model.SecurityLog{}); err != nil {
		log.Fatalf("Error migrating security log: %v", err)
	}
	util.SetSecurityLoggerDB(db)

	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, rate limiting falls back to process memory and session tracking is disabled: %v", err)
	}

	kv, err := store.Open(cfg, db)
	if err != nil {
		log.Fatalf("Error opening %s store: %v", cfg.StoreDriver, err)
	}

	deps, err := newDeps(cfg, kv)
	if err != nil {
		log.Fatalf("Error building services: %v", err)
	}

	util.InitDisplayNameCache(cfg.UserCacheSize)

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	router := setupRouter(cfg, deps)

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}

func newDeps(cfg *config.Config, kv store.KV) (*middleware.Deps, error) {
	calendar, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	return &middleware.Deps{
		Store:    kv,
		Accounts: account.NewStore(kv),
		Sessions: account.NewSessions(kv, cfg.SessionTTL),
		Booking:  booking.NewService(kv, calendar),
	}, nil
}

func setupRouter(cfg *config.Config, deps *middleware.Deps) *gin.Engine {
	// Create a Gin router with default middleware
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DepsMiddleware(deps))
	router.Use(middleware.EndpointCallLogger())

	// Basic HTTP handler for root path
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	limited := router.Group("/")
	limited.Use(middleware.RateLimiter(middleware.RateLimitConfig{}))
	{
		limited.POST("/register", endpoint.Register)
		limited.POST("/login", endpoint.Login)
	}

	router.GET("/healthz", endpoint.Health)
	router.GET("/token/validate", endpoint.ValidateToken)
	router.GET("/services", endpoint.ListServices)

	auth := router.Group("/")
	auth.Use(middleware.RequireSession())
	{
		auth.DELETE("/logout", endpoint.Logout)
		auth.GET("/slots", endpoint.ListSlots)
		auth.GET("/appointments", endpoint.ListAppointments)
		auth.POST("/appointments", endpoint.CreateAppointment)
		auth.GET("/appointments/export.ics", endpoint.ExportAppointments)
		auth.DELETE("/appointments/:id", endpoint.CancelAppointment)
	}

	return router
}
