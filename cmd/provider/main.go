package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mock of the two upstreams the gateway talks to in production: the
// Flutterwave transaction ledger and the Amigo data-dispensing API. Intended
// for local development and integration testing only.

// Payment is one ledger entry, keyed by tx_ref.
type Payment struct {
	TxRef      string    `json:"tx_ref"`
	Amount     float64   `json:"amount"` // major units, like the real ledger
	Status     string    `json:"status"` // "successful", "pending", "failed"
	Currency   string    `json:"currency"`
	SettledAt  time.Time `json:"settled_at"`
	ProviderID string    `json:"provider_id"`
}

// Delivery is one recorded dispense, keyed by idempotency key.
type Delivery struct {
	Network      int       `json:"network"`
	MobileNumber string    `json:"mobile_number"`
	Plan         int64     `json:"plan"`
	Reference    string    `json:"reference"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

type MockProvider struct {
	mu         sync.Mutex
	payments   map[string]*Payment
	deliveries map[string]*Delivery
	providerID string

	secretKey   string
	amigoAPIKey string
}

func NewMockProvider(secretKey, amigoAPIKey string) *MockProvider {
	return &MockProvider{
		payments:    make(map[string]*Payment),
		deliveries:  make(map[string]*Delivery),
		providerID:  "MOCK_PROVIDER_" + uuid.New().String()[:8],
		secretKey:   secretKey,
		amigoAPIKey: amigoAPIKey,
	}
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) authorized(c *gin.Context, key string) bool {
	auth := c.GetHeader("Authorization")
	if auth != "Bearer "+key {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid authorization"})
		return false
	}
	return true
}

// SeedPayment registers a settled (or pending/failed) bank transfer, standing
// in for a customer actually sending money.
func (h *Handler) SeedPayment(c *gin.Context) {
	var req struct {
		TxRef  string  `json:"tx_ref" binding:"required"`
		Amount float64 `json:"amount" binding:"required"`
		Status string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.Status == "" {
		req.Status = "successful"
	}

	payment := &Payment{
		TxRef:      req.TxRef,
		Amount:     req.Amount,
		Status:     req.Status,
		Currency:   "NGN",
		SettledAt:  time.Now(),
		ProviderID: h.provider.providerID,
	}

	h.provider.mu.Lock()
	h.provider.payments[req.TxRef] = payment
	h.provider.mu.Unlock()

	log.Info().
		Str("tx_ref", req.TxRef).
		Float64("amount", req.Amount).
		Str("status", req.Status).
		Msg("Payment seeded")

	c.JSON(http.StatusCreated, payment)
}

// VerifyByReference mimics GET /v3/transactions/verify_by_reference.
func (h *Handler) VerifyByReference(c *gin.Context) {
	if !h.authorized(c, h.provider.secretKey) {
		return
	}

	txRef := c.Query("tx_ref")
	if txRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "tx_ref is required"})
		return
	}

	h.provider.mu.Lock()
	payment, ok := h.provider.payments[txRef]
	h.provider.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "No transaction was found for this id",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Transaction fetched successfully",
		"data": gin.H{
			"tx_ref":   payment.TxRef,
			"status":   payment.Status,
			"amount":   payment.Amount,
			"currency": payment.Currency,
		},
	})
}

// DeliverData mimics the Amigo dispense endpoint. Replays with the same
// Idempotency-Key return the original delivery instead of dispensing twice.
func (h *Handler) DeliverData(c *gin.Context) {
	if !h.authorized(c, h.provider.amigoAPIKey) {
		return
	}

	var req struct {
		Network      int    `json:"network" binding:"required"`
		MobileNumber string `json:"mobile_number" binding:"required"`
		Plan         int64  `json:"plan" binding:"required"`
		PortedNumber bool   `json:"Ported_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Idempotency-Key header is required"})
		return
	}

	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()

	if existing, ok := h.provider.deliveries[key]; ok {
		log.Info().Str("idempotency_key", key).Msg("Replay detected, returning original delivery")
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"status":    "delivered",
			"reference": existing.Reference,
			"replayed":  true,
		})
		return
	}

	delivery := &Delivery{
		Network:      req.Network,
		MobileNumber: req.MobileNumber,
		Plan:         req.Plan,
		Reference:    "AMG-" + uuid.New().String()[:13],
		DeliveredAt:  time.Now(),
	}
	h.provider.deliveries[key] = delivery

	log.Info().
		Str("idempotency_key", key).
		Int("network", req.Network).
		Str("mobile", req.MobileNumber).
		Int64("plan", req.Plan).
		Msg("Data bundle dispensed")

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "delivered",
		"reference": delivery.Reference,
	})
}

// FireWebhook posts a charge.completed event at the gateway, the way the
// real provider notifies after a transfer settles.
func (h *Handler) FireWebhook(c *gin.Context) {
	var req struct {
		TxRef  string `json:"tx_ref" binding:"required"`
		Target string `json:"target" binding:"required"`
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.provider.mu.Lock()
	payment, ok := h.provider.payments[req.TxRef]
	h.provider.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tx_ref"})
		return
	}

	body := fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":%q,"status":%q}}`, payment.TxRef, payment.Status)
	httpReq, err := http.NewRequest(http.MethodPost, req.Target, strings.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("verif-hash", req.Secret)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	log.Info().Str("tx_ref", req.TxRef).Int("status", resp.StatusCode).Msg("Webhook fired")
	c.JSON(http.StatusOK, gin.H{"delivered": true, "status": resp.StatusCode})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"provider_id": h.provider.providerID,
		"timestamp":   time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// Flutterwave side
	router.GET("/v3/transactions/verify_by_reference", handler.VerifyByReference)

	// Amigo side
	router.POST("/api/data/", handler.DeliverData)

	// Test controls
	mock := router.Group("/mock")
	{
		mock.POST("/payments", handler.SeedPayment)
		mock.POST("/webhook", handler.FireWebhook)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	secretKey := getEnv("FLUTTERWAVE_SECRET_KEY", "FLWSECK_TEST-mock")
	amigoKey := getEnv("AMIGO_API_KEY", "amigo-mock")

	log.Info().
		Str("port", port).
		Msg("Starting mock payment and delivery provider")

	provider := NewMockProvider(secretKey, amigoKey)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
