package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogPage = `{"data":{"products":{
  "pageInfo":{"hasNextPage":false,"endCursor":"c-2"},
  "edges":[
    {"cursor":"c-1","node":{"id":"gid://shopify/Product/1","legacyResourceId":"1","title":"Linen Shirt","metafields":{"nodes":[
      {"id":"gid://shopify/Metafield/11","namespace":"custom","key":"badges","type":"list.single_line_text_field","value":"[\"New In\",\"Sale\"]"},
      {"id":"gid://shopify/Metafield/12","namespace":"custom","key":"expiration_time","type":"date_time","value":"2020-01-01T00:00:00Z"}]}}},
    {"cursor":"c-2","node":{"id":"gid://shopify/Product/2","legacyResourceId":"2","title":"Plain Tee","metafields":{"nodes":[
      {"id":"gid://shopify/Metafield/21","namespace":"custom","key":"badges","type":"list.single_line_text_field","value":"[\"New In\"]"},
      {"id":"gid://shopify/Metafield/22","namespace":"custom","key":"expiration_time","type":"date_time","value":"2999-01-01T00:00:00Z"}]}}}
  ]}}}`

type fakeShop struct {
	mu        sync.Mutex
	mutations []string
	status    int
}

func (s *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(req.Query, "metafieldsSet"):
		s.record("set")
		_, _ = io.WriteString(w, `{"data":{"metafieldsSet":{"metafields":[],"userErrors":[]}}}`)
	case strings.Contains(req.Query, "metafieldDelete"):
		s.record(fmt.Sprintf("delete %v", req.Variables["id"]))
		_, _ = fmt.Fprintf(w, `{"data":{"metafieldDelete":{"deletedId":%q,"userErrors":[]}}}`, req.Variables["id"])
	default:
		_, _ = io.WriteString(w, catalogPage)
	}
}

func (s *fakeShop) record(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, m)
}

func (s *fakeShop) Mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mutations...)
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SHOPIFY_STORE_URL", "SHOPIFY_ADMIN_API_ACCESS_TOKEN", "SHOPIFY_API_VERSION", "METASWEEP_ENV", "OTEL_ENABLED"} {
		t.Setenv(key, "")
	}
}

func writeSweepConfig(t *testing.T, baseURL, token string) string {
	t.Helper()
	body := fmt.Sprintf(`
environment: dev
store:
  domain: example.myshopify.com
  accessToken: %q
  baseURL: %s
  requestsPerSecond: 1000
  burst: 100
`, token, baseURL)
	path := filepath.Join(t.TempDir(), "metasweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, logs bytes.Buffer
	cmd := newRootCommand(&stdout, log.New(&logs, sweepLoggerPrefix, 0))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), logs.String(), err
}

func TestSweepAgainstShop(t *testing.T) {
	isolateEnv(t)
	shop := &fakeShop{}
	server := httptest.NewServer(shop)
	defer server.Close()

	stdout, logs, err := execute(t, "--config", writeSweepConfig(t, server.URL, "shpat_test"))
	require.NoError(t, err)
	assert.Equal(t, exitComplete, exitCode(err))

	assert.Equal(t, []string{"set", "delete gid://shopify/Metafield/12"}, shop.Mutations())
	assert.Contains(t, stdout, "complete\n")
	assert.Contains(t, stdout, "pages=1 scanned=2 skipped=1 failed=0\n")
	assert.Contains(t, stdout, `  Linen Shirt [gid://shopify/Product/1]: removed tag "New In", deleted expiration entry`)
	assert.Contains(t, logs, `skip "Plain Tee"`)
	assert.Contains(t, logs, "telemetry disabled")
}

func TestSweepDryRunSendsNoMutations(t *testing.T) {
	isolateEnv(t)
	shop := &fakeShop{}
	server := httptest.NewServer(shop)
	defer server.Close()

	stdout, logs, err := execute(t, "--config", writeSweepConfig(t, server.URL, "shpat_test"), "--dry-run", "--workers", "2")
	require.NoError(t, err)
	assert.Empty(t, shop.Mutations())
	assert.Contains(t, stdout, "tags removed: 1\n")
	assert.Contains(t, logs, "dry-run: delete metafield gid://shopify/Metafield/12")
	assert.Contains(t, logs, "dry_run=true")
}

func TestSweepTransportFailureIsIncomplete(t *testing.T) {
	isolateEnv(t)
	server := httptest.NewServer(&fakeShop{status: http.StatusBadGateway})
	defer server.Close()

	stdout, _, err := execute(t, "--config", writeSweepConfig(t, server.URL, "shpat_test"))
	require.Error(t, err)
	assert.Equal(t, exitIncomplete, exitCode(err))
	assert.Contains(t, stdout, "INCOMPLETE")
	assert.Contains(t, stdout, "run aborted before the last page")
}

func TestConfigErrorsExitWithConfigCode(t *testing.T) {
	isolateEnv(t)

	stdout, _, err := execute(t, "--config", writeSweepConfig(t, "http://127.0.0.1:9", ""))
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
	assert.Contains(t, err.Error(), "accessToken")
	assert.Empty(t, stdout)

	_, _, err = execute(t, "--config", writeSweepConfig(t, "http://127.0.0.1:9", "shpat_test"), "--workers", "99")
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand(io.Discard, log.New(io.Discard, "", 0))
	assert.Equal(t, "metasweep", cmd.Use)
	for _, name := range []string{"config", "dry-run", "workers"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	_, _, err := execute(t, "unexpected-arg")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitComplete, exitCode(nil))
	assert.Equal(t, exitIncomplete, exitCode(errors.New("boom")))
	wrapped := fmt.Errorf("outer: %w", &exitError{code: exitConfig, err: errors.New("bad")})
	assert.Equal(t, exitConfig, exitCode(wrapped))
}
