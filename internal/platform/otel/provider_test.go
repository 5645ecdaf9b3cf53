package otel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), config.Tracing{ServiceName: "gatehouse"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no actual export happens.
	shutdown, err := otel.Setup(context.Background(), config.Tracing{
		OTLPEndpoint: "http://192.0.2.1:4318",
		ServiceName:  "gatehouse",
		SampleRatio:  1,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
