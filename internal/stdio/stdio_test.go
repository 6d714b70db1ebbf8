package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfab/market-gateway/internal/adapters"
	"github.com/quantfab/market-gateway/internal/cache"
	"github.com/quantfab/market-gateway/internal/config"
	"github.com/quantfab/market-gateway/internal/fabric"
	"github.com/quantfab/market-gateway/internal/schema"
	"github.com/quantfab/market-gateway/internal/tools"
)

type stubSource struct {
	name string
	body string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchRaw(_ context.Context, req adapters.Request) (*adapters.RawResult, error) {
	return &adapters.RawResult{Body: []byte(s.body), Endpoint: "/stub/" + req.DataType, Status: 200}, nil
}

func (s *stubSource) Transform(raw []byte, _ string) (any, error) {
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *stubSource) Close() error { return nil }

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	cfg := &config.Config{
		Cache: config.CacheConfig{TTL: config.TTLConfig{Default: 60}},
		Conflict: config.ConflictConfig{
			DefaultThreshold: 0.5,
		},
		Tools: map[string]config.ToolConfig{
			"crypto_overview": {Enabled: true},
			"sentiment_news":  {Enabled: false},
		},
		Sources: map[string]config.SourceConfig{
			"stubsource": {BaseURL: "http://stub.local", TimeoutMS: 1000, RateLimitPerMin: 600},
		},
		Chains: map[string]map[string][]string{
			"crypto_overview": {"basic": {"stubsource"}},
		},
	}

	areg := adapters.NewRegistry()
	areg.Register(&stubSource{name: "stubsource", body: `{"symbol": "BTC", "name": "Bitcoin"}`})

	c := cache.NewMemory()
	t.Cleanup(func() { _ = c.Close() })

	treg := tools.NewRegistry(cfg)
	validator, err := schema.NewValidator(treg.Schemas())
	require.NoError(t, err)

	runner := tools.NewRunner(fabric.NewEngine(areg, c, nil), cfg, nil, nil)
	return New(treg, runner, validator, "market-gateway", "test")
}

// serve feeds input through the transport and decodes each response line.
func serve(t *testing.T, tr *Transport, input string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, tr.Serve(context.Background(), strings.NewReader(input), &out))

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

func result(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	r, ok := resp["result"].(map[string]any)
	require.True(t, ok, "response has no object result: %v", resp)
	return r
}

// callText extracts the single text content of a call_tool result.
func callText(t *testing.T, resp map[string]any) string {
	t.Helper()
	blocks, ok := resp["result"].([]any)
	require.True(t, ok, "response has no content result: %v", resp)
	require.Len(t, blocks, 1)
	block := blocks[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	return block["text"].(string)
}

func TestInitialize(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, "2.0", responses[0]["jsonrpc"])
	assert.Equal(t, float64(1), responses[0]["id"])
	r := result(t, responses[0])
	assert.Equal(t, protocolVersion, r["protocol_version"])
	info := r["server_info"].(map[string]any)
	assert.Equal(t, "market-gateway", info["name"])
	assert.Equal(t, "test", info["version"])
}

func TestListToolsEnabledOnly(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 5, "method": "list_tools"}`+"\n")

	require.Len(t, responses, 1)
	cards := result(t, responses[0])["tools"].([]any)
	require.Len(t, cards, 1, "sentiment_news is disabled")
	card := cards[0].(map[string]any)
	assert.Equal(t, "crypto_overview", card["name"])
	assert.NotNil(t, card["input_schema"])
}

func TestCallToolReturnsEnvelopeJSON(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 2, "method": "call_tool", "params": {"name": "crypto_overview", "arguments": {"symbol": "BTC", "include_fields": ["basic"]}}}`+"\n")

	require.Len(t, responses, 1)
	text := callText(t, responses[0])

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &env), "text content is envelope JSON")
	data := env["data"].(map[string]any)
	basic := data["basic"].(map[string]any)
	assert.Equal(t, "Bitcoin", basic["name"])
	assert.NotEmpty(t, env["source_meta"])
}

func TestCallToolUnknownName(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 3, "method": "call_tool", "params": {"name": "nope", "arguments": {}}}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, "Unknown tool: nope", callText(t, responses[0]))
}

func TestCallToolDisabled(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 4, "method": "call_tool", "params": {"name": "sentiment_news", "arguments": {}}}`+"\n")

	require.Len(t, responses, 1)
	text := callText(t, responses[0])
	assert.Contains(t, text, "Error:")
	assert.Contains(t, text, "disabled")
}

func TestCallToolInvalidArguments(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 6, "method": "call_tool", "params": {"name": "crypto_overview", "arguments": {"symbol": 42}}}`+"\n")

	require.Len(t, responses, 1)
	text := callText(t, responses[0])
	assert.Contains(t, text, "Error:")
	assert.Contains(t, text, "symbol")
}

func TestUnknownMethod(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, `{"jsonrpc": "2.0", "id": 7, "method": "shutdown"}`+"\n")

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(codeMethodNotFound), rpcErr["code"])
	assert.Contains(t, rpcErr["message"], "shutdown")
}

func TestParseFailure(t *testing.T) {
	tr := newTestTransport(t)

	responses := serve(t, tr, "{broken json\n")

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(codeParseError), rpcErr["code"])
	assert.Nil(t, responses[0]["id"])
}

func TestNotificationsAndBlankLines(t *testing.T) {
	tr := newTestTransport(t)

	input := "\n" +
		`{"jsonrpc": "2.0", "method": "notifications/initialized"}` + "\n" +
		`{"jsonrpc": "2.0", "id": 8, "method": "initialize"}` + "\n"
	responses := serve(t, tr, input)

	require.Len(t, responses, 1, "only the request with an id is answered")
	assert.Equal(t, float64(8), responses[0]["id"])
}
