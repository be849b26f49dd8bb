package weightsource

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apar/internal/domain/weights"
	"apar/internal/platform/genai"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type funcSource func(ctx context.Context, meta ProjectMetadata) ([]weights.KPIWeight, error)

func (f funcSource) Generate(ctx context.Context, meta ProjectMetadata) ([]weights.KPIWeight, error) {
	return f(ctx, meta)
}

func assertDefaults(t *testing.T, res Resolution) {
	t.Helper()
	assert.Equal(t, OriginDefault, res.Origin)
	assert.NotEmpty(t, res.FallbackReason)
	assert.Equal(t, GetDefaultWeights(nil), res.Weights)
}

func TestResolveUsesGenAIOutput(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateJSON", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Site Inspections") && strings.Contains(p, "sum to 100")
	})).Return(`{"weights":[
		{"name":"Site Inspections","fieldWeight":30,"hqWeight":0},
		{"name":"Invented KPI","fieldWeight":50,"hqWeight":50},
		{"name":"File Disposal","fieldWeight":10,"hqWeight":60},
		{"name":"Site Inspections","fieldWeight":40,"hqWeight":0},
		{"name":"Policy Drafting","fieldWeight":0,"hqWeight":20}
	]}`, nil)

	r := NewResolver(GenAISource{Client: gen}, nil, time.Second)
	res := r.Resolve(context.Background(), ProjectMetadata{Name: "Bridge"})

	gen.AssertExpectations(t)
	assert.Equal(t, OriginGenAI, res.Origin)
	assert.Empty(t, res.FallbackReason)
	assert.Equal(t, []string{"Invented KPI"}, res.Rejected)
	require.Len(t, res.Weights, 3)
	got := map[string]weights.KPIWeight{}
	for _, w := range res.Weights {
		got[w.Name] = w
	}
	assert.Equal(t, 80.0, got["Site Inspections"].FieldWeight)
	assert.Equal(t, 20.0, got["File Disposal"].FieldWeight)
	assert.Equal(t, 75.0, got["File Disposal"].HQWeight)
	assert.Equal(t, 25.0, got["Policy Drafting"].HQWeight)
}

func TestResolveFallsBackWhenNotConfigured(t *testing.T) {
	var reasons []string
	r := NewResolver(GenAISource{Client: genai.NewClient("", "", "", 0)}, nil, time.Second)
	r.OnFallback = func(reason string) { reasons = append(reasons, reason) }

	res := r.Resolve(context.Background(), ProjectMetadata{Name: "Bridge"})
	assertDefaults(t, res)
	assert.Equal(t, []string{"weight source not configured"}, reasons)
}

func TestResolveFallsBackOnTimeout(t *testing.T) {
	slow := funcSource(func(ctx context.Context, _ ProjectMetadata) ([]weights.KPIWeight, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := NewResolver(slow, nil, 10*time.Millisecond)
	res := r.Resolve(context.Background(), ProjectMetadata{})
	assertDefaults(t, res)
	assert.Contains(t, res.FallbackReason, "timed out")
}

func TestResolveFallsBackOnUnparseableOutput(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return("I cannot help with that.", nil)
	res := NewResolver(GenAISource{Client: gen}, nil, time.Second).Resolve(context.Background(), ProjectMetadata{})
	assertDefaults(t, res)
	assert.Equal(t, "weight source returned invalid output", res.FallbackReason)
}

func TestResolveFallsBackOnUpstreamError(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateJSON", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
	res := NewResolver(GenAISource{Client: gen}, nil, time.Second).Resolve(context.Background(), ProjectMetadata{})
	assertDefaults(t, res)
	assert.Equal(t, "weight source unavailable", res.FallbackReason)
	assert.NotContains(t, res.FallbackReason, "connection refused")
}

func TestResolveUnreachableUpstreamHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	const key = "SUPER-SECRET-KEY"
	client := genai.NewClient(addr, "", key, time.Second)
	res := NewResolver(GenAISource{Client: client}, nil, time.Second).Resolve(context.Background(), ProjectMetadata{Name: "Bridge"})

	assertDefaults(t, res)
	assert.Equal(t, "weight source unavailable", res.FallbackReason)
	assert.NotContains(t, res.FallbackReason, key)
	assert.NotContains(t, logs.String(), key)
	assert.Contains(t, logs.String(), "weight source failed")
}

func TestResolveFallsBackWhenNothingInCatalog(t *testing.T) {
	src := funcSource(func(context.Context, ProjectMetadata) ([]weights.KPIWeight, error) {
		return []weights.KPIWeight{{Name: "site inspections", FieldWeight: 100, HQWeight: 100}}, nil
	})
	res := NewResolver(src, nil, time.Second).Resolve(context.Background(), ProjectMetadata{})
	assertDefaults(t, res)
	assert.Equal(t, []string{"site inspections"}, res.Rejected)
}

func TestResolveFallsBackOnEmptyChannel(t *testing.T) {
	src := funcSource(func(context.Context, ProjectMetadata) ([]weights.KPIWeight, error) {
		return []weights.KPIWeight{{Name: "Site Inspections", FieldWeight: 100}}, nil
	})
	res := NewResolver(src, nil, time.Second).Resolve(context.Background(), ProjectMetadata{})
	assertDefaults(t, res)
}

func TestDefaultSourceIsNormalized(t *testing.T) {
	out, err := DefaultSource{}.Generate(context.Background(), ProjectMetadata{})
	require.NoError(t, err)
	for _, typ := range []weights.EmployeeType{weights.EmployeeTypeField, weights.EmployeeTypeHQ} {
		res := weights.ValidateWeightTotal(weights.Channel(out, typ), 0)
		assert.True(t, res.Valid, "%s: %+v", typ, res)
	}

	res := NewResolver(DefaultSource{}, nil, 0).Resolve(context.Background(), ProjectMetadata{})
	assert.Equal(t, OriginDefault, res.Origin)
	assert.Empty(t, res.FallbackReason)
}
