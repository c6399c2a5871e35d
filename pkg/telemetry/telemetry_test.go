package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/telemetry"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "marginalia-test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// non-routable, nothing is exported
	shutdown, err := telemetry.Setup(context.Background(), "marginalia-test", "http://192.0.2.1:4318")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
