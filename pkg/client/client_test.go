package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/client"
	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/marginalia"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store/memory"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()
	config := marginalia.DefaultConfig()
	app := marginalia.NewWithStore(config, memory.New(), zerolog.Nop())
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return client.NewClient(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])

	reader, err := c.CreateReader(ctx, "alice")
	require.NoError(t, err)
	c.SetReader(reader.ID)

	got, err := c.GetReader(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	view, err := c.Send(ctx, command.Envelope{
		Type:   "Create",
		Object: map[string]any{"type": "Tag", "name": "to-read"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Create", view.Type)
	assert.Equal(t, "to-read", view.Object["name"])

	list, err := c.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	idx := strings.LastIndex(view.ID, "/")
	id, err := models.ParseActivityID(view.ID[idx+1:])
	require.NoError(t, err)
	one, err := c.GetActivity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, view.ID, one.ID)
}

func TestClientReturnsStructuredFailures(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	reader, err := c.CreateReader(ctx, "alice")
	require.NoError(t, err)
	c.SetReader(reader.ID)

	env := command.Envelope{Type: "Create", Object: map[string]any{"type": "Tag", "name": "dup"}}
	_, err = c.Send(ctx, env)
	require.NoError(t, err)

	_, err = c.Send(ctx, env)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Conflict", apiErr.Kind)
	assert.Equal(t, "Create Tag", apiErr.Details.Activity)
	assert.Equal(t, "Tag", apiErr.Details.Type)

	require.NoError(t, c.SetReadOnly(ctx, true))
	_, err = c.Send(ctx, command.Envelope{Type: "Create", Object: map[string]any{"type": "Tag", "name": "other"}})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}
