package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	signbroker "github.com/vaultsandbox/signbroker-go"
)

func setup(t *testing.T) (*Provider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	p, err := Setup(context.Background(), Config{ServiceName: "test"}, nil, reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor[N int64 | float64](t *testing.T, agg metricdata.Aggregation, kv ...attribute.KeyValue) N {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[N])
	require.True(t, ok, "aggregation is %T", agg)
	want := attribute.NewSet(kv...)
	var total N
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_Lifecycle(t *testing.T) {
	p, reader := setup(t)
	m := p.Metrics()
	ctx := context.Background()
	kind := attribute.String("kind", string(signbroker.KindSignRaw))

	m.RequestEnqueued(ctx, signbroker.KindSignRaw)
	m.RequestEnqueued(ctx, signbroker.KindSignRaw)
	m.DecisionFailed(ctx, signbroker.KindSignRaw, "wrong_secret")
	m.DecisionDuration(ctx, signbroker.KindSignRaw, 12*time.Millisecond)
	m.RequestResolved(ctx, signbroker.KindSignRaw, signbroker.OutcomeApproved, 3*time.Second)

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumFor[int64](t, data["signbroker.requests.enqueued"], kind))
	assert.Equal(t, int64(1), sumFor[int64](t, data["signbroker.requests.pending"], kind))
	assert.Equal(t, int64(1), sumFor[int64](t, data["signbroker.requests.resolved"],
		kind, attribute.String("outcome", "approved")))
	assert.Equal(t, int64(1), sumFor[int64](t, data["signbroker.decisions.failed"],
		kind, attribute.String("reason", "wrong_secret")))

	hist, ok := data["signbroker.decision.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 12.0, hist.DataPoints[0].Sum, 0.001)
}

func TestMetrics_WiredIntoAuthority(t *testing.T) {
	p, reader := setup(t)
	ctx := context.Background()
	auth := signbroker.NewAuthority(rejectVault{}, signbroker.WithMetrics(p.Metrics()))

	pending, err := auth.Submit(ctx, "app", &signbroker.SignRawRequest{Address: "a", Data: "0x01"})
	require.NoError(t, err)
	_, err = auth.Decide(ctx, pending.ID(), signbroker.Approve("nope"))
	require.Error(t, err)
	_, err = auth.Decide(ctx, pending.ID(), signbroker.Reject())
	require.NoError(t, err)

	data := collect(t, reader)
	kind := attribute.String("kind", string(signbroker.KindSignRaw))
	assert.Equal(t, int64(0), sumFor[int64](t, data["signbroker.requests.pending"], kind))
	assert.Equal(t, int64(1), sumFor[int64](t, data["signbroker.decisions.failed"],
		kind, attribute.String("reason", "wrong_secret")))
	assert.Equal(t, int64(1), sumFor[int64](t, data["signbroker.requests.resolved"],
		kind, attribute.String("outcome", "rejected")))
}

func TestSetup_NoExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p.Metrics())
	assert.NoError(t, p.Shutdown(context.Background()))
}

type rejectVault struct{}

func (rejectVault) SignPayload(context.Context, string, []byte, []byte) ([]byte, error) {
	return nil, signbroker.ErrWrongSecret
}

func (rejectVault) SignRaw(context.Context, string, []byte, []byte) ([]byte, error) {
	return nil, signbroker.ErrWrongSecret
}

func (rejectVault) EncryptMessage(context.Context, string, []byte, string, []byte) ([]byte, error) {
	return nil, signbroker.ErrWrongSecret
}

func (rejectVault) DecryptMessage(context.Context, string, []byte, string, []byte) ([]byte, error) {
	return nil, signbroker.ErrWrongSecret
}
