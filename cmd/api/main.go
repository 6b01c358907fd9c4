package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/geo"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/metrics"
	"qrattend/internal/netverify"
	"qrattend/internal/queue"
	"qrattend/internal/report"
	"qrattend/internal/store"
	"qrattend/internal/token"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:redemptions")
	}

	var tokenStore token.Store
	if cfg.TokenStore == "memory" || db == nil || db.Client == nil {
		log.Println("token store: in-memory")
		tokenStore = token.NewMemStore()
	} else {
		tokenStore = token.NewPGStore(db.Client)
	}
	tokens := token.NewService(tokenStore)

	var reports *report.Repository
	if db != nil && db.Client != nil {
		reports = report.NewRepository(db.Client)
	}

	netCheck := netverify.New(redisClient.Client)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", func(c *gin.Context) {
		var req struct {
			Identity string `json:"identity" binding:"required"`
			Role     string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleStaff && req.Role != auth.RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be staff or student"})
			return
		}

		pair, err := auth.Issue(req.Identity, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.AccessExp.Unix(),
		})
	})

	staff := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStaff))

	staff.POST("/qrcodes", func(c *gin.Context) {
		var req struct {
			SubjectID     string   `json:"subject_id" binding:"required"`
			SessionID     string   `json:"session_id" binding:"required"`
			Latitude      *float64 `json:"latitude"`
			Longitude     *float64 `json:"longitude"`
			AllowedRadius *float64 `json:"allowed_radius"`
			TTLSeconds    *int     `json:"ttl_seconds"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if (req.Latitude == nil) != (req.Longitude == nil) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude must be provided together"})
			return
		}

		params := token.IssueParams{
			SubjectID:     req.SubjectID,
			SessionID:     req.SessionID,
			AllowedRadius: cfg.DefaultRadius,
			TTL:           cfg.DefaultTokenTTL,
		}
		if req.Latitude != nil {
			p := geo.NewPoint(req.Latitude, req.Longitude)
			params.Anchor = &p
		}
		if req.AllowedRadius != nil {
			params.AllowedRadius = *req.AllowedRadius
		}
		if req.TTLSeconds != nil {
			params.TTL = time.Duration(*req.TTLSeconds) * time.Second
		}

		tok, err := tokens.Issue(c.Request.Context(), params)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		netCheck.RememberIssuer(c.Request.Context(), tok.Code, c.ClientIP(), time.Until(tok.ExpiresAt))
		metrics.TokensIssued.Inc()

		c.JSON(http.StatusCreated, gin.H{
			"id":             tok.ID,
			"token":          tok.Code,
			"subject_id":     tok.SubjectID,
			"session_id":     tok.SessionID,
			"allowed_radius": tok.AllowedRadius,
			"expires_at":     tok.ExpiresAt,
			"scan_path":      "/v1/attendance/scan?token=" + tok.Code,
		})
	})

	staff.GET("/reports", func(c *gin.Context) {
		if reports == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage not configured"})
			return
		}
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := reports.List(c.Request.Context(), c.Query("subject_id"), c.Query("student_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": records})
	})

	student := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))

	// Interactive scan path: the QR link opens in the student's browser,
	// which appends the device's geolocation as query parameters.
	student.GET("/attendance/scan", func(c *gin.Context) {
		code := c.Query("token")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token query parameter required"})
			return
		}
		reading := geo.Reading{
			Point: geo.NewPoint(queryFloat(c, "latitude"), queryFloat(c, "longitude")),
		}
		if acc := queryFloat(c, "accuracy"); acc != nil {
			reading.Accuracy = *acc
		}
		redeemAttendance(c, tokens, q, netCheck, code, reading)
	})

	// Upload path: the student posts a token value captured elsewhere. Both
	// paths go through the same service; neither carries its own
	// deactivation logic.
	student.POST("/attendance/upload", func(c *gin.Context) {
		var req struct {
			Token     string   `json:"token" binding:"required"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Accuracy  *float64 `json:"accuracy"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reading := geo.Reading{Point: geo.NewPoint(req.Latitude, req.Longitude)}
		if req.Accuracy != nil {
			reading.Accuracy = *req.Accuracy
		}
		redeemAttendance(c, tokens, q, netCheck, req.Token, reading)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// redeemAttendance is the single redemption funnel for every entry point.
// The verdict is always surfaced, even on a geofence miss; bookkeeping
// decides what a non-passing verdict means.
func redeemAttendance(c *gin.Context, tokens *token.Service, q queue.Queue, netCheck *netverify.Checker, code string, reading geo.Reading) {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	redeemerID := claims.Subject

	out, err := tokens.Redeem(c.Request.Context(), code, reading, redeemerID)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrNotFound):
			metrics.Redemptions.WithLabelValues("not_found").Inc()
			c.JSON(http.StatusNotFound, gin.H{"committed": false, "reason": "not_found"})
		case errors.Is(err, token.ErrExpired):
			metrics.Redemptions.WithLabelValues("expired").Inc()
			c.JSON(http.StatusGone, gin.H{"committed": false, "reason": "expired"})
		case errors.Is(err, token.ErrInactive):
			if errors.Is(err, token.ErrLostRace) {
				metrics.LostRaces.Inc()
			}
			metrics.Redemptions.WithLabelValues("inactive").Inc()
			c.JSON(http.StatusConflict, gin.H{"committed": false, "reason": "inactive"})
		default:
			metrics.Redemptions.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	metrics.Redemptions.WithLabelValues("committed").Inc()
	metrics.GeofenceVerdicts.WithLabelValues(verdictLabel(out)).Inc()

	netMatch := netCheck.Match(c.Request.Context(), code, c.ClientIP())
	details := report.DetailsFrom(out.LocationChecked, out.Verification, netMatch)

	rec := report.Record{
		TokenID:    out.Token.ID,
		RedeemerID: out.RedeemerID,
		SubjectID:  out.Token.SubjectID,
		SessionID:  out.Token.SessionID,
		Verified:   out.Verification.Within,
		Details:    details,
		RedeemedAt: out.RedeemedAt,
	}
	if reading.Valid() {
		rec.Latitude = &reading.Lat
		rec.Longitude = &reading.Lon
		rec.Accuracy = &reading.Accuracy
	}
	if body, err := json.Marshal(rec); err == nil {
		if err := q.Publish(c.Request.Context(), queue.Message{Type: "redemption", Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"committed":    true,
		"token_id":     out.Token.ID,
		"redeemed_at":  out.RedeemedAt,
		"verification": details,
	})
}

func verdictLabel(out token.Outcome) string {
	switch {
	case !out.LocationChecked:
		return "unchecked"
	case !out.Verification.Reliable:
		return "unreliable"
	case out.Verification.Within:
		return "within"
	default:
		return "outside"
	}
}

func queryFloat(c *gin.Context, name string) *float64 {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
