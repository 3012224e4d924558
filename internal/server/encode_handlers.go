package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// encodedImage is a rendered code ready to be served.
type encodedImage struct {
	Data        []byte
	ContentType string
	Version     int
	Level       qrgen.Level
}

// parseFormOrMultipart accepts url-encoded and multipart bodies alike.
func (s *Server) parseFormOrMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	err := r.ParseMultipartForm(s.maxUploadBytes())
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	return err
}

func formInt(r *http.Request, key string, def int) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", qrgen.ErrInvalidRequest, key)
	}
	return n, nil
}

// buildEncodeRequest merges form values over the configured encoder defaults.
func (s *Server) buildEncodeRequest(r *http.Request) (qrgen.Request, string, error) {
	enc := s.config.Encoder
	var err error

	req := qrgen.Request{Payload: r.FormValue("payload"), LogoFraction: enc.LogoFraction}

	levelName := enc.Level
	if v := r.FormValue("level"); v != "" {
		levelName = v
	}
	if req.Level, err = qrgen.ParseLevel(levelName); err != nil {
		return req, "", err
	}
	if req.Version, err = formInt(r, "version", 0); err != nil {
		return req, "", err
	}
	if req.MaxVersion, err = formInt(r, "max_version", enc.MaxVersion); err != nil {
		return req, "", err
	}
	if req.ModuleSize, err = formInt(r, "module_size", enc.ModuleSize); err != nil {
		return req, "", err
	}
	if req.Border, err = formInt(r, "border", enc.Border); err != nil {
		return req, "", err
	}

	fg, bg := enc.Foreground, enc.Background
	if v := r.FormValue("fg"); v != "" {
		fg = v
	}
	if v := r.FormValue("bg"); v != "" {
		bg = v
	}
	if req.Foreground, err = qrgen.ParseColor(fg); err != nil {
		return req, "", err
	}
	if req.Background, err = qrgen.ParseColor(bg); err != nil {
		return req, "", err
	}

	format := enc.ImageFormat
	if v := r.FormValue("format"); v != "" {
		format = v
	}
	if format, err = qrgen.NormalizeImageFormat(format); err != nil {
		return req, "", err
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["logo"]) > 0 {
		logo, err := readLogo(r, s.config.Constraints)
		if err != nil {
			return req, "", err
		}
		req.Logo = logo
		if r.FormValue("level") == "" {
			req.Level = qrgen.LevelH
		}
	}
	return req, format, nil
}

func readLogo(r *http.Request, cons utils.ImageConstraints) (image.Image, error) {
	f, _, err := r.FormFile("logo")
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable logo", qrgen.ErrInvalidRequest)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable logo", qrgen.ErrInvalidRequest)
	}
	img, _, err := utils.DecodeImageBytesWithin(data, cons)
	if err != nil {
		return nil, fmt.Errorf("%w: logo is not a supported image within the size limits", qrgen.ErrInvalidRequest)
	}
	return img, nil
}

// encodeCacheKey identifies a rendered code by every input that affects it.
func encodeCacheKey(req qrgen.Request, format string) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%d\x00%d\x00%s\x00%s\x00%s",
		req.Payload, req.Level, req.Version, req.MaxVersion, req.ModuleSize, req.Border,
		qrgen.FormatColor(req.Foreground), qrgen.FormatColor(req.Background), format)
	return hex.EncodeToString(h.Sum(nil))
}

// encodeStatus maps encoder errors to HTTP status codes.
func encodeStatus(err error) int {
	var capErr *qrgen.CapacityExceededError
	var colorErr *qrgen.ColorFormatError
	switch {
	case errors.As(err, &capErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &colorErr),
		errors.Is(err, qrgen.ErrEmptyPayload),
		errors.Is(err, qrgen.ErrLogoRequiresLevelH),
		errors.Is(err, qrgen.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// encodeHandler renders a QR code. Results without a logo are cached.
func (s *Server) encodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.parseFormOrMultipart(w, r); err != nil {
		s.writeError(w, r, "failed to parse form data", http.StatusBadRequest)
		return
	}

	req, format, err := s.buildEncodeRequest(r)
	if err != nil {
		encodeRequestsTotal.WithLabelValues("qr", "error").Inc()
		s.writeError(w, r, err.Error(), encodeStatus(err))
		return
	}

	key := ""
	if req.Logo == nil {
		key = encodeCacheKey(req, format)
		if v, ok := s.encodeCache.Get(key); ok {
			if img, ok := v.(*encodedImage); ok {
				encodeCacheTotal.WithLabelValues("hit").Inc()
				encodeRequestsTotal.WithLabelValues("qr", "success").Inc()
				writeEncoded(w, img, "HIT")
				return
			}
		}
		encodeCacheTotal.WithLabelValues("miss").Inc()
	}

	res, err := qrgen.Encode(req)
	if err != nil {
		encodeRequestsTotal.WithLabelValues("qr", "error").Inc()
		s.writeError(w, r, err.Error(), encodeStatus(err))
		return
	}
	var buf bytes.Buffer
	if err := qrgen.WriteImage(&buf, res.Image, format); err != nil {
		s.writeError(w, r, fmt.Sprintf("failed to write image: %v", err), http.StatusInternalServerError)
		return
	}

	out := &encodedImage{
		Data:        buf.Bytes(),
		ContentType: qrgen.ContentType(format),
		Version:     res.Matrix.Version,
		Level:       res.Matrix.Level,
	}
	if key != "" {
		s.encodeCache.Set(key, out, cache.DefaultExpiration)
	}
	encodeRequestsTotal.WithLabelValues("qr", "success").Inc()
	slog.Debug("Encoded QR code", "version", out.Version, "level", out.Level.String(), "request_id", requestID(r))
	writeEncoded(w, out, "MISS")
}

func writeEncoded(w http.ResponseWriter, img *encodedImage, cacheState string) {
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("X-QR-Version", strconv.Itoa(img.Version))
	w.Header().Set("X-QR-Level", img.Level.String())
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// barcodeHandler renders a 1D barcode as PNG.
func (s *Server) barcodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.parseFormOrMultipart(w, r); err != nil {
		s.writeError(w, r, "failed to parse form data", http.StatusBadRequest)
		return
	}

	req := qrgen.LinearRequest{Payload: r.FormValue("payload")}
	var err error
	kind := r.FormValue("type")
	if kind == "" {
		kind = string(qrgen.KindCode128)
	}
	if req.Kind, err = qrgen.ParseLinearKind(kind); err == nil {
		if req.Width, err = formInt(r, "width", 0); err == nil {
			if req.Height, err = formInt(r, "height", 0); err == nil {
				req.QuietZone, err = formInt(r, "quiet_zone", 0)
			}
		}
	}
	if err != nil {
		encodeRequestsTotal.WithLabelValues("linear", "error").Inc()
		s.writeError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	img, err := qrgen.EncodeLinear(req)
	if err != nil {
		encodeRequestsTotal.WithLabelValues("linear", "error").Inc()
		s.writeError(w, r, err.Error(), encodeStatus(err))
		return
	}
	encodeRequestsTotal.WithLabelValues("linear", "success").Inc()
	w.Header().Set("Content-Type", qrgen.ContentType("png"))
	if err := qrgen.WriteImage(w, img, "png"); err != nil {
		slog.Error("Failed to write barcode", "error", err)
	}
}
