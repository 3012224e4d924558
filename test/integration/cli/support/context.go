// Package support holds the step definitions of the CLI feature tests. Commands
// run in-process against a fresh qrkit command tree per invocation.
package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Test environment
	TempDir string

	// Server state
	HTTPServer      *httptest.Server
	LastHTTPStatus  int
	LastHTTPBody    []byte
	LastHTTPHeaders http.Header
}

// NewTestContext creates a context with its own temporary directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qrkit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir}, nil
}

// Cleanup stops the test server and removes the temporary directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// Path resolves name inside the scenario's temporary directory.
func (testCtx *TestContext) Path(name string) string {
	return filepath.Join(testCtx.TempDir, filepath.FromSlash(name))
}

// expand replaces {tmp} with the temporary directory.
func (testCtx *TestContext) expand(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}
