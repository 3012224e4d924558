package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/batch"
	"github.com/MeKo-Tech/qrkit/internal/pdf"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.config.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// formatsHandler lists decodable symbologies and encoder outputs.
func (s *Server) formatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := FormatsResponse{
		Decode:       barcode.AllFormats(),
		Levels:       []string{qrgen.LevelL.String(), qrgen.LevelM.String(), qrgen.LevelQ.String(), qrgen.LevelH.String()},
		ImageFormats: qrgen.ImageFormats,
	}
	for _, k := range qrgen.LinearKinds() {
		resp.Linear = append(resp.Linear, string(k))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// readUpload parses the multipart form and returns the named file's bytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, *multipart.FileHeader, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
		}
		return nil, nil, http.StatusBadRequest, errors.New("failed to parse form data")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, http.StatusBadRequest, fmt.Errorf("no %s file provided", field)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, http.StatusInternalServerError, fmt.Errorf("failed to read %s data", field)
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return data, header, http.StatusOK, nil
}

// decodeOptions applies per-request overrides to the configured decode options.
func (s *Server) decodeOptions(r *http.Request) (barcode.Options, error) {
	opts := s.config.Decode
	if v := r.FormValue("formats"); v != "" {
		formats, err := barcode.ParseFormats(strings.Split(v, ","))
		if err != nil {
			return opts, err
		}
		opts.Formats = formats
	}
	if v := r.FormValue("try_inverted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid try_inverted %q", v)
		}
		opts.TryInverted = b
	}
	if isTrue(r.FormValue("first")) {
		opts.Multi = false
	}
	return opts, nil
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.TimeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.config.TimeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

// decodeHandler decodes the uploaded image. The format field selects json
// (default), text, csv or overlay output; first=1 returns at most one symbol.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, header, status, err := s.readUpload(w, r, "image")
	if err != nil {
		s.writeError(w, r, err.Error(), status)
		return
	}
	format := r.FormValue("format")
	switch format {
	case "", "json", "text", "csv", "overlay":
	default:
		s.writeError(w, r, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}
	opts, err := s.decodeOptions(r)
	if err != nil {
		s.writeError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	img, meta, err := utils.DecodeImageBytesWithin(data, s.config.Constraints)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		if errors.Is(err, utils.ErrImageTooLarge) {
			s.writeError(w, r, "Image dimensions exceed the allowed size", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, r, "Invalid image format", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	symbols, err := barcode.DecodeWithin(ctx, img, opts, s.config.Constraints)
	elapsed := time.Since(start)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		var inputErr *barcode.DecodeInputError
		if errors.As(err, &inputErr) {
			s.writeError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeError(w, r, fmt.Sprintf("decode failed: %v", err), http.StatusInternalServerError)
		return
	}
	if !opts.Multi && len(symbols) > 1 {
		symbols = symbols[:1]
	}
	if symbols == nil {
		symbols = []barcode.Symbol{}
	}

	decodeRequestsTotal.WithLabelValues("image", "success").Inc()
	decodeDuration.WithLabelValues("image").Observe(elapsed.Seconds())
	symbolsDecoded.WithLabelValues("image").Observe(float64(len(symbols)))
	slog.Debug("Decoded upload", "file", header.Filename, "symbols", len(symbols), "request_id", requestID(r))

	switch format {
	case "overlay":
		annotate := barcode.DefaultAnnotateOptions()
		annotate.Color = s.config.OverlayColor
		w.Header().Set("Content-Type", qrgen.ContentType("png"))
		if err := qrgen.WriteImage(w, barcode.Annotate(img, symbols, annotate), "png"); err != nil {
			slog.Error("Failed to write overlay", "error", err)
		}
	case "text", "csv":
		out, err := batch.FormatResults([]batch.FileResult{{
			File: header.Filename, Width: meta.Width, Height: meta.Height, Symbols: symbols,
		}}, format)
		if err != nil {
			s.writeError(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		_, _ = io.WriteString(w, out)
	case "", "json":
		s.writeJSON(w, http.StatusOK, DecodeResponse{
			Success:    true,
			Width:      meta.Width,
			Height:     meta.Height,
			Symbols:    symbols,
			Processing: ProcessingInfo{TotalTimeMs: elapsed.Milliseconds()},
			RequestID:  requestID(r),
		})
	}
}

// decodePDFHandler decodes the images embedded in an uploaded PDF.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, header, status, err := s.readUpload(w, r, "pdf")
	if err != nil {
		s.writeError(w, r, err.Error(), status)
		return
	}
	pageRange := r.FormValue("pages")
	if _, err := pdf.ParsePageRange(pageRange); err != nil {
		s.writeError(w, r, fmt.Sprintf("invalid page range: %v", err), http.StatusBadRequest)
		return
	}
	opts, err := s.decodeOptions(r)
	if err != nil {
		s.writeError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	tmp, err := writeTempPDF(data)
	if err != nil {
		s.writeError(w, r, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.Remove(tmp) }()

	cfg := pdf.DefaultProcessorConfig()
	cfg.Decode = opts
	cfg.Constraints = s.config.Constraints
	if pw := r.FormValue("password"); pw != "" {
		cfg.Credentials = &pdf.Credentials{UserPassword: pw}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	doc, err := pdf.NewProcessor(cfg).ProcessFile(ctx, tmp, pageRange)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		if pdf.IsPasswordError(err) {
			s.writeError(w, r, "PDF is encrypted; supply the password field", http.StatusUnprocessableEntity)
			return
		}
		s.writeError(w, r, fmt.Sprintf("PDF processing failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	doc.Filename = header.Filename

	decodeRequestsTotal.WithLabelValues("pdf", "success").Inc()
	decodeDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
	symbolsDecoded.WithLabelValues("pdf").Observe(float64(len(doc.Symbols())))

	if r.FormValue("format") == "text" {
		var results []batch.FileResult
		for _, page := range doc.Pages {
			for _, img := range page.Images {
				results = append(results, batch.FileResult{
					File: header.Filename, Page: page.PageNumber, Image: img.ImageIndex,
					Width: img.Width, Height: img.Height, Symbols: img.Symbols, Error: img.Error,
				})
			}
		}
		out, _ := batch.FormatResults(results, "text")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, out)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Success   bool                `json:"success"`
		Result    *pdf.DocumentResult `json:"result"`
		RequestID string              `json:"request_id,omitempty"`
	}{Success: true, Result: doc, RequestID: requestID(r)})
}

func writeTempPDF(data []byte) (string, error) {
	f, err := os.CreateTemp("", "qrkit-upload-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), f.Close()
}

// decodeUploadedImage is shared by the scan socket. Frames over the pixel
// limit are rejected before their pixels are decoded.
func decodeUploadedImage(data []byte, cons utils.ImageConstraints) (image.Image, error) {
	img, _, err := utils.DecodeImageBytesWithin(data, cons)
	if errors.Is(err, utils.ErrImageTooLarge) {
		return nil, &barcode.DecodeInputError{Reason: "image outside size limits", Err: err}
	}
	if err != nil {
		return nil, &barcode.DecodeInputError{Reason: "undecodable image data", Err: err}
	}
	return img, nil
}
