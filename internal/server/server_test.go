package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

type decodedSymbol struct {
	Format string `json:"format"`
	Text   string `json:"text"`
}

type decodeBody struct {
	Success   bool            `json:"success"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Symbols   []decodedSymbol `json:"symbols"`
	RequestID string          `json:"request_id"`
}

func newTestServer() *Server {
	opts := barcode.DefaultOptions()
	opts.Formats = []barcode.Format{barcode.FormatQR}
	return NewServer(Config{Version: "test", Decode: opts})
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a POST with one file part and optional fields.
func multipartRequest(t *testing.T, target, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthMethodNotAllowed(t *testing.T) {
	rec := serve(newTestServer(), httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFormats(t *testing.T) {
	rec := serve(newTestServer(), httptest.NewRequest(http.MethodGet, "/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Decode       []string `json:"decode"`
		Levels       []string `json:"levels"`
		ImageFormats []string `json:"image_formats"`
		Linear       []string `json:"linear"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Decode, "QR")
	assert.Equal(t, []string{"L", "M", "Q", "H"}, resp.Levels)
	assert.Contains(t, resp.ImageFormats, "png")
	assert.Contains(t, resp.Linear, string(qrgen.KindCode128))
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "3f1c2a52-7d1e-4b6a-9a43-2a0d2f6f9b10")
	rec = serve(s, req)
	assert.Equal(t, "3f1c2a52-7d1e-4b6a-9a43-2a0d2f6f9b10", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = serve(s, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(RequestIDHeader))
}

func TestDecodeJSON(t *testing.T) {
	img := testutil.QRImage(t, "hello server", qrgen.LevelM)
	req := multipartRequest(t, "/decode", "image", "qr.png", pngBytes(t, img), nil)
	rec := serve(newTestServer(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp decodeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, img.Bounds().Dx(), resp.Width)
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "QR", resp.Symbols[0].Format)
	assert.Equal(t, "hello server", resp.Symbols[0].Text)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)
}

func TestDecodeNoSymbols(t *testing.T) {
	blank := testutil.CreateTestImage(200, 200, color.White)
	req := multipartRequest(t, "/decode", "image", "blank.png", pngBytes(t, blank), nil)
	rec := serve(newTestServer(), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp decodeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Symbols)
	assert.Empty(t, resp.Symbols)
}

func TestDecodeFirstOnly(t *testing.T) {
	qr := testutil.QRImage(t, "left", qrgen.LevelM)
	bar := testutil.LinearImage(t, "RIGHT-128", qrgen.KindCode128)
	w := qr.Bounds().Dx()
	h := max(qr.Bounds().Dy(), bar.Bounds().Dy()) + 20
	both := testutil.Place(w+bar.Bounds().Dx()+40, h, qr, 10, 10)
	draw.Draw(both, bar.Bounds().Add(image.Pt(w+30, 10)), bar, bar.Bounds().Min, draw.Src)
	data := pngBytes(t, both)
	fields := map[string]string{"formats": "qr,code128"}

	rec := serve(newTestServer(), multipartRequest(t, "/decode", "image", "two.png", data, fields))
	require.Equal(t, http.StatusOK, rec.Code)
	var all decodeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Symbols, 2)

	fields["first"] = "true"
	rec = serve(newTestServer(), multipartRequest(t, "/decode", "image", "two.png", data, fields))
	require.Equal(t, http.StatusOK, rec.Code)
	var first decodeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Len(t, first.Symbols, 1)
}

func TestDecodeTextAndCSV(t *testing.T) {
	img := testutil.QRImage(t, "line output", qrgen.LevelM)
	data := pngBytes(t, img)

	rec := serve(newTestServer(), multipartRequest(t, "/decode", "image", "qr.png", data, map[string]string{"format": "text"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# qr.png")
	assert.Contains(t, rec.Body.String(), "QR\tline output")

	rec = serve(newTestServer(), multipartRequest(t, "/decode", "image", "qr.png", data, map[string]string{"format": "csv"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "file,page,image,index,format,text"))
	assert.Contains(t, rec.Body.String(), "line output")
}

func TestDecodeOverlay(t *testing.T) {
	img := testutil.QRImage(t, "overlay", qrgen.LevelM)
	rec := serve(newTestServer(), multipartRequest(t, "/decode", "image", "qr.png", pngBytes(t, img), map[string]string{"format": "overlay"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	out, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), out.Bounds().Size())
}

func TestDecodeErrors(t *testing.T) {
	s := newTestServer()

	t.Run("method", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/decode", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
	t.Run("missing file", func(t *testing.T) {
		rec := serve(s, multipartRequest(t, "/decode", "", "", nil, map[string]string{"format": "json"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "no image file provided")
	})
	t.Run("not an image", func(t *testing.T) {
		rec := serve(s, multipartRequest(t, "/decode", "image", "x.png", []byte("nope"), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.RequestID)
	})
	t.Run("unknown format filter", func(t *testing.T) {
		img := testutil.QRImage(t, "x", qrgen.LevelM)
		rec := serve(s, multipartRequest(t, "/decode", "image", "x.png", pngBytes(t, img), map[string]string{"formats": "qr,pdf417x"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown output format", func(t *testing.T) {
		img := testutil.QRImage(t, "x", qrgen.LevelM)
		rec := serve(s, multipartRequest(t, "/decode", "image", "x.png", pngBytes(t, img), map[string]string{"format": "xml"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("oversized dimensions", func(t *testing.T) {
		rec := serve(s, multipartRequest(t, "/decode", "image", "bomb.png", testutil.OversizedPNG(t, 60000, 60000), nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "dimensions")
	})
	t.Run("too large", func(t *testing.T) {
		small := NewServer(Config{MaxUploadMB: 1})
		big := make([]byte, 2<<20)
		rec := serve(small, multipartRequest(t, "/decode", "image", "big.png", big, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestDecodeRejectsOutputFormatBeforeDecoding(t *testing.T) {
	success := decodeRequestsTotal.WithLabelValues("image", "success")
	failure := decodeRequestsTotal.WithLabelValues("image", "error")
	before := counterValue(t, success) + counterValue(t, failure)

	img := testutil.QRImage(t, "never decoded", qrgen.LevelM)
	rec := serve(newTestServer(), multipartRequest(t, "/decode", "image", "x.png", pngBytes(t, img), map[string]string{"format": "xml"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `unsupported format \"xml\"`)
	assert.Equal(t, before, counterValue(t, success)+counterValue(t, failure))
}

func TestDecodePDFErrors(t *testing.T) {
	s := newTestServer()

	rec := serve(s, multipartRequest(t, "/decode/pdf", "pdf", "doc.pdf", []byte("%PDF-1.4"), map[string]string{"pages": "3-1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid page range")

	rec = serve(s, multipartRequest(t, "/decode/pdf", "pdf", "doc.pdf", []byte("not a pdf"), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEncodeRoundTrip(t *testing.T) {
	s := newTestServer()
	rec := serve(s, formRequest("/encode", url.Values{"payload": {"https://example.com"}, "level": {"Q"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "Q", rec.Header().Get("X-QR-Level"))
	assert.NotEmpty(t, rec.Header().Get("X-QR-Version"))
	encoded := rec.Body.Bytes()

	dec := serve(s, multipartRequest(t, "/decode", "image", "qr.png", encoded, nil))
	require.Equal(t, http.StatusOK, dec.Code)
	var resp decodeBody
	require.NoError(t, json.Unmarshal(dec.Body.Bytes(), &resp))
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "https://example.com", resp.Symbols[0].Text)

	again := serve(s, formRequest("/encode", url.Values{"payload": {"https://example.com"}, "level": {"Q"}}))
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, encoded, again.Body.Bytes())
}

func TestEncodeWithLogo(t *testing.T) {
	logo := testutil.CreateTestImage(40, 40, color.RGBA{R: 200, A: 255})
	req := multipartRequest(t, "/encode", "logo", "logo.png", pngBytes(t, logo), map[string]string{"payload": "with logo"})
	rec := serve(newTestServer(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "H", rec.Header().Get("X-QR-Level"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	req = multipartRequest(t, "/encode", "logo", "logo.png", pngBytes(t, logo), map[string]string{"payload": "with logo", "level": "L"})
	rec = serve(newTestServer(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEncodeErrors(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		name   string
		values url.Values
		status int
	}{
		{"empty payload", url.Values{}, http.StatusBadRequest},
		{"bad colour", url.Values{"payload": {"x"}, "fg": {"#12"}}, http.StatusBadRequest},
		{"bad level", url.Values{"payload": {"x"}, "level": {"Z"}}, http.StatusBadRequest},
		{"bad integer", url.Values{"payload": {"x"}, "border": {"wide"}}, http.StatusBadRequest},
		{"bad image format", url.Values{"payload": {"x"}, "format": {"gif"}}, http.StatusBadRequest},
		{"capacity", url.Values{"payload": {strings.Repeat("x", 100)}, "max_version": {"3"}}, http.StatusUnprocessableEntity},
		{"oversized image", url.Values{"payload": {"x"}, "version": {"40"}, "module_size": {"100"}, "border": {"40"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, formRequest("/encode", tt.values))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestEncodeCacheKeyVariesByInput(t *testing.T) {
	req := qrgen.DefaultRequest("a")
	base := encodeCacheKey(req, "png")
	assert.NotEqual(t, base, encodeCacheKey(req, "jpeg"))
	req.Level = qrgen.LevelH
	assert.NotEqual(t, base, encodeCacheKey(req, "png"))
}

func TestBarcode(t *testing.T) {
	rec := serve(newTestServer(), formRequest("/barcode", url.Values{"payload": {"QRKIT-128"}, "height": {"80"}, "quiet_zone": {"10"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dy())

	rec = serve(newTestServer(), formRequest("/barcode", url.Values{"payload": {"x"}, "type": {"morse"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(newTestServer(), formRequest("/barcode", url.Values{"payload": {"x"}, "width": {"100000"}, "height": {"100000"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigFromApp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Server.RateLimit.Enabled = true

	sc, err := ConfigFromApp(&cfg)
	require.NoError(t, err)
	assert.Equal(t, 9999, sc.Port)
	assert.True(t, sc.RateLimit.Enabled)
	assert.NotNil(t, sc.OverlayColor)

	s := NewServer(sc)
	assert.NotNil(t, s.rateLimiter)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qrkit_http_requests_total")
}

func TestRoutesCheckMethodAfterCORS(t *testing.T) {
	routes := map[string]string{
		"/health":     http.MethodGet,
		"/formats":    http.MethodGet,
		"/decode":     http.MethodPost,
		"/decode/pdf": http.MethodPost,
		"/encode":     http.MethodPost,
		"/barcode":    http.MethodPost,
	}
	s := newTestServer()
	for path, allowed := range routes {
		wrong := http.MethodPost
		if allowed == http.MethodPost {
			wrong = http.MethodPut
		}
		t.Run(path, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(wrong, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

			rec = serve(s, httptest.NewRequest(http.MethodOptions, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newTestServer(), httptest.NewRequest(http.MethodOptions, "/encode", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Cache")
}
