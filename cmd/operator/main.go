package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nimasrn/messaging-gateway/internal/webhooks"
)

// Mock carrier for local development. It accepts Twilio-style sends,
// simulates delivery, and posts signed status callbacks back at the
// gateway's SMS status webhook.

type sendResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
	Body   string `json:"body"`
}

// MockCarrier simulates an SMS carrier account.
type MockCarrier struct {
	accountSID   string
	authToken    string
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	rng          *rand.Rand
	client       *http.Client
}

func NewMockCarrier(accountSID, authToken string, deliveryRate float64, minDelay, maxDelay time.Duration) *MockCarrier {
	return &MockCarrier{
		accountSID:   accountSID,
		authToken:    authToken,
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *MockCarrier) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockCarrier) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

// simulateDelivery posts the progression of status callbacks a real
// carrier would: sent, then delivered or failed.
func (m *MockCarrier) simulateDelivery(sid, callbackURL string) {
	if callbackURL == "" {
		return
	}

	time.Sleep(m.randomDelay())
	m.postStatus(sid, "sent", callbackURL)

	time.Sleep(m.randomDelay())
	if m.shouldSucceed() {
		m.postStatus(sid, "delivered", callbackURL)

		log.Info().
			Str("sid", sid).
			Msg("message delivered")
	} else {
		m.postStatus(sid, "failed", callbackURL)

		log.Warn().
			Str("sid", sid).
			Msg("message delivery failed")
	}
}

func (m *MockCarrier) postStatus(sid, status, callbackURL string) {
	form := url.Values{}
	form.Set("AccountSid", m.accountSID)
	form.Set("MessageSid", sid)
	form.Set("MessageStatus", status)

	params := map[string]string{}
	for k := range form {
		params[k] = form.Get(k)
	}
	signature := webhooks.CarrierSignature(m.authToken, callbackURL, params)

	req, err := http.NewRequest(http.MethodPost, callbackURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error().Err(err).Msg("failed to build status callback")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signature)

	resp, err := m.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", callbackURL).Msg("status callback failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("sid", sid).
		Str("status", status).
		Int("response", resp.StatusCode).
		Msg("posted status callback")
}

type Handler struct {
	carrier *MockCarrier
}

func NewHandler(carrier *MockCarrier) *Handler {
	return &Handler{carrier: carrier}
}

// SendMessage handles Twilio-style message create requests.
func (h *Handler) SendMessage(c *gin.Context) {
	account := c.Param("account")
	if account != h.carrier.accountSID {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}

	to := c.PostForm("To")
	from := c.PostForm("From")
	body := c.PostForm("Body")
	callback := c.PostForm("StatusCallback")

	if to == "" || from == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "To and From are required"})
		return
	}

	sid := "SM" + strings.ReplaceAll(uuid.New().String(), "-", "")

	log.Info().
		Str("sid", sid).
		Str("to", to).
		Str("from", from).
		Msg("accepted message")

	go h.carrier.simulateDelivery(sid, callback)

	c.JSON(http.StatusCreated, sendResponse{
		SID:    sid,
		Status: "queued",
		To:     to,
		From:   from,
		Body:   body,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"account_sid":   h.carrier.accountSID,
		"delivery_rate": h.carrier.deliveryRate,
		"timestamp":     time.Now(),
	})
}

// UpdateConfig allows changing the delivery rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.carrier.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"delivery_rate": h.carrier.deliveryRate,
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
			Msg("request processed")
	})

	router.POST("/2010-04-01/Accounts/:account/Messages.json", handler.SendMessage)
	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	accountSID := getEnv("ACCOUNT_SID", "AC00000000000000000000000000000000")
	authToken := getEnv("AUTH_TOKEN", "mock-auth-token")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Str("account_sid", accountSID).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock carrier")

	carrier := NewMockCarrier(accountSID, authToken, deliveryRate, minDelay, maxDelay)
	handler := NewHandler(carrier)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
