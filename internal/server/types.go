// Package server exposes barcode decoding and QR generation over HTTP.
package server

import (
	"image/color"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	config      Config
	encodeCache *cache.Cache
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	CacheTTL    time.Duration
	Version     string

	Decode       barcode.Options
	Constraints  utils.ImageConstraints
	Encoder      config.EncoderConfig
	OverlayColor color.Color
	RateLimit    config.RateLimitConfig

	// ScanStopOnFirst is the default for the stop_on_first query parameter.
	ScanStopOnFirst bool
	ScanMaxFrames   int
}

// ConfigFromApp derives the server configuration from the application config.
func ConfigFromApp(cfg *config.Config) (Config, error) {
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return Config{}, err
	}
	overlay, err := qrgen.ParseColor(cfg.Output.OverlayColor)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		CORSOrigin:      cfg.Server.CORSOrigin,
		MaxUploadMB:     int64(cfg.Server.MaxUploadMB),
		TimeoutSec:      cfg.Server.TimeoutSec,
		CacheTTL:        cfg.CacheTTL(),
		Decode:          opts,
		Constraints:     cfg.ImageConstraints(),
		Encoder:         cfg.Encoder,
		OverlayColor:    overlay,
		RateLimit:       cfg.Server.RateLimit,
		ScanStopOnFirst: cfg.Scan.StopOnFirst,
		ScanMaxFrames:   cfg.Scan.MaxFrames,
	}, nil
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// FormatsResponse lists what the server can read and write.
type FormatsResponse struct {
	Decode       []barcode.Format `json:"decode"`
	Levels       []string         `json:"levels"`
	ImageFormats []string         `json:"image_formats"`
	Linear       []string         `json:"linear"`
}

// DecodeResponse is the JSON body of POST /decode.
type DecodeResponse struct {
	Success    bool             `json:"success"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Symbols    []barcode.Symbol `json:"symbols"`
	Processing ProcessingInfo   `json:"processing"`
	RequestID  string           `json:"request_id,omitempty"`
}

// ProcessingInfo carries request timing.
type ProcessingInfo struct {
	TotalTimeMs int64 `json:"total_time_ms"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server. Zero values in config fall back to defaults.
func NewServer(cfg Config) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Constraints == (utils.ImageConstraints{}) {
		cfg.Constraints = utils.DefaultImageConstraints()
	}
	if cfg.OverlayColor == nil {
		cfg.OverlayColor = color.RGBA{G: 255, A: 255}
	}
	if cfg.Encoder == (config.EncoderConfig{}) {
		cfg.Encoder = config.DefaultConfig().Encoder
	}

	s := &Server{
		config:      cfg,
		encodeCache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return s
}

func (s *Server) maxUploadBytes() int64 { return s.config.MaxUploadMB << 20 }

// SetupRoutes registers the API routes on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/formats", s.corsMiddleware(s.formatsHandler))
	mux.HandleFunc("/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	mux.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler)))
	mux.HandleFunc("/encode", s.corsMiddleware(s.rateLimitMiddleware(s.encodeHandler)))
	mux.HandleFunc("/barcode", s.corsMiddleware(s.rateLimitMiddleware(s.barcodeHandler)))
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the complete HTTP handler with request IDs attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return requestIDMiddleware(mux)
}
