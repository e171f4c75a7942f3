package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	httpserver "github.com/turtacn/LoreKit/internal/interfaces/http"
	"github.com/turtacn/LoreKit/internal/interfaces/http/handlers"
	"github.com/turtacn/LoreKit/internal/testutil"
	"github.com/turtacn/LoreKit/pkg/client"
)

type fakePurger struct{ n int64 }

func (p *fakePurger) Purge(context.Context) (int64, error) { return p.n, nil }

// newServer runs the real route tree over the test rule documents.
func newServer(t *testing.T) (*client.Client, *annotation.Service) {
	t.Helper()
	logger := testutil.NewMockLogger()

	files := testutil.MythosRuleFiles()
	files["entities.relics.yaml"] = "kinds:\n  Relic:\n    gazetteer: [Ember Crown]\n"
	b := annotation.NewBuilder(annotation.NewDirSource(testutil.WriteRuleFiles(t, files)), annotation.RuleFiles{}, logger)
	svc := annotation.NewService(b, annotation.NewProjectCache(b, annotation.CacheOptions{}, logger), logger)
	require.NoError(t, svc.ReloadBase(context.Background()))

	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnnotationHandler: handlers.NewAnnotationHandler(svc, logger, 1<<20),
		HealthHandler:     handlers.NewHealthHandler("test", handlers.ReadyCheck("rules", svc.Ready)),
		DirectoryHandler:  handlers.NewDirectoryHandler(&fakePurger{n: 4}, logger),
		Logger:            logger,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	c, err := client.NewClient(ts.URL, client.WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return c, svc
}

func TestParse(t *testing.T) {
	c, _ := newServer(t)
	off := false

	resp, err := c.Parse(context.Background(), client.ParseRequest{
		Text:  "Queen Amicae reached the Storm Coast.",
		Fuzzy: &off,
	})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "Queen Amicae", resp.Hits[0].Span.Text)
	assert.Equal(t, client.KindPerson, resp.Hits[0].Kind)
	assert.Equal(t, "dictionary", resp.Hits[0].Source)
	assert.Equal(t, client.KindPlace, resp.Hits[1].Kind)
	assert.Contains(t, resp.Tokens, "Amicae")
}

func TestParse_ProjectAndCustomKind(t *testing.T) {
	c, _ := newServer(t)
	off := false
	project := "relics"

	resp, err := c.Parse(context.Background(), client.ParseRequest{
		Text:      "Lord Rawn lifted the Ember Crown.",
		ProjectID: &project,
		Kinds:     []client.Kind{client.CustomKind("Relic")},
		Fuzzy:     &off,
	})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, client.CustomKind("Relic"), resp.Hits[0].Kind)
	assert.Equal(t, "Ember Crown", resp.Hits[0].Span.Text)

	projects, err := c.Projects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"relics"}, projects)

	require.NoError(t, c.InvalidateProject(context.Background(), "relics"))
	projects, err = c.Projects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestParse_InvalidProject(t *testing.T) {
	c, _ := newServer(t)
	project := "../etc"

	_, err := c.Parse(context.Background(), client.ParseRequest{Text: "x", ProjectID: &project})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsBadRequest())
	assert.Equal(t, "LORE_006", apiErr.Code)
}

func TestExtract(t *testing.T) {
	c, _ := newServer(t)

	candidates, err := c.Extract(context.Background(), "Lord Rawn drew The Scorchblade.")
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, client.Candidate{Text: "Lord Rawn", Kind: "Person"}, candidates[0])
}

func TestPurgeDirectoryCache(t *testing.T) {
	c, _ := newServer(t)

	n, err := c.PurgeDirectoryCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestProbes(t *testing.T) {
	c, _ := newServer(t)

	live, err := c.Healthz(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, "test", live.Version)

	ready, err := c.Readyz(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "healthy", ready.Components["rules"].Status)
}
