package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/server"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

func (testCtx *TestContext) theServerIsRunning() error {
	cfg := config.DefaultConfig()
	sc, err := server.ConfigFromApp(&cfg)
	if err != nil {
		return err
	}
	sc.Version = "test"
	testCtx.HTTPServer = httptest.NewServer(server.NewServer(sc).Handler())
	return nil
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", fmt.Errorf("server is not running")
	}
	return testCtx.HTTPServer.URL + path, nil
}

func (testCtx *TestContext) record(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatus = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iGet(path string) error {
	u, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	return testCtx.record(httpClient.Get(u))
}

// iUploadTo posts the named file as a multipart field.
func (testCtx *TestContext) iUploadTo(name, field, path string) error {
	u, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.record(httpClient.Post(u, mw.FormDataContentType(), &body))
}

// iPostForm posts url-encoded fields given as "k=v&k=v".
func (testCtx *TestContext) iPostForm(path, fields string) error {
	u, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	values, err := url.ParseQuery(fields)
	if err != nil {
		return err
	}
	return testCtx.record(httpClient.PostForm(u, values))
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatus, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != value {
		return fmt.Errorf("expected header %s=%q, got %q", name, value, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), text) {
		return fmt.Errorf("expected response to contain %q, got:\n%s", text, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldListSymbol(text string) error {
	var resp struct {
		Symbols []struct {
			Text string `json:"text"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(testCtx.LastHTTPBody, &resp); err != nil {
		return fmt.Errorf("response is not a decode result: %w", err)
	}
	for _, s := range resp.Symbols {
		if s.Text == text {
			return nil
		}
	}
	return fmt.Errorf("symbol %q not in response: %s", text, testCtx.LastHTTPBody)
}

// iSaveTheResponseAs writes the last response body to a file.
func (testCtx *TestContext) iSaveTheResponseAs(name string) error {
	return os.WriteFile(testCtx.Path(name), testCtx.LastHTTPBody, 0o600)
}

// RegisterServerSteps registers steps against an in-process HTTP server.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the qrkit server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGet)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I POST "([^"]*)" with form "([^"]*)"$`, testCtx.iPostForm)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should list the symbol "([^"]*)"$`, testCtx.theResponseShouldListSymbol)
	sc.Step(`^I save the response as "([^"]*)"$`, testCtx.iSaveTheResponseAs)
}
