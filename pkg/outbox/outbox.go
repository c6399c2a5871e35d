// Package outbox records executed commands as activities and renders a
// reader's activity history.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/handler"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// Log appends activities to a store and addresses them by URI.
type Log struct {
	baseURL string
	now     func() time.Time
}

// New returns a Log whose activity URIs live under baseURL.
func New(baseURL string) *Log {
	return &Log{baseURL: strings.TrimSuffix(baseURL, "/"), now: time.Now}
}

// Append persists one activity for an executed command. st is normally the
// transaction the mutation ran in.
func (l *Log) Append(ctx context.Context, st store.Store, actor models.ReaderID, verb command.Verb, name string, res handler.Result) (*models.Activity, error) {
	object, err := toJSONMap(res.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot object: %w", err)
	}
	a := &models.Activity{
		ID:        models.NewActivityID(),
		Type:      string(verb),
		Name:      name,
		ActorID:   actor,
		ReaderID:  actor,
		Object:    object,
		Published: l.now().UTC(),
	}
	if res.Target != nil {
		if a.Target, err = toJSONMap(*res.Target); err != nil {
			return nil, fmt.Errorf("failed to snapshot target: %w", err)
		}
	}
	if err := st.AppendActivity(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to append activity: %w", err)
	}
	return a, nil
}

// Get returns an activity, or nil if there is none with that id.
func (l *Log) Get(ctx context.Context, st store.Store, id models.ActivityID) (*models.Activity, error) {
	return st.GetActivity(ctx, id)
}

// List returns the reader's activities, newest first.
func (l *Log) List(ctx context.Context, st store.Store, reader models.ReaderID, limit int) ([]*models.Activity, error) {
	return st.ListActivities(ctx, reader, limit)
}

// URI is the public address of an activity.
func (l *Log) URI(id models.ActivityID) string {
	return l.baseURL + "/activities/" + id.String()
}

// View is the wire form of an activity.
type View struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"summary"`
	Actor     string         `json:"actor"`
	Object    models.JSONMap `json:"object"`
	Target    models.JSONMap `json:"target,omitempty"`
	Published time.Time      `json:"published"`
}

func (l *Log) View(a *models.Activity) View {
	return View{
		ID:        l.URI(a.ID),
		Type:      a.Type,
		Name:      a.Name,
		Actor:     a.ActorID.String(),
		Object:    a.Object,
		Target:    a.Target,
		Published: a.Published,
	}
}

// toJSONMap flattens a snapshot into the stored JSON form, tagging it with
// its resource type.
func toJSONMap(s handler.Snapshot) (models.JSONMap, error) {
	b, err := json.Marshal(s.Value)
	if err != nil {
		return nil, err
	}
	m := models.JSONMap{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["type"] = s.Type
	return m, nil
}
