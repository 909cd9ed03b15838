package rest_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestTestConcerts(t *testing.T, ts *testServer) {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/admin/concerts/ingest", map[string]interface{}{
		"concerts": []map[string]interface{}{
			{
				"concert_id":      "c1",
				"name":            "Phoenix",
				"location":        "Berlin",
				"venue":           "Columbiahalle",
				"date":            time.Now().Add(72 * time.Hour),
				"popularity_rank": 2,
			},
			{
				"concert_id":      "c2",
				"name":            "Alvvays",
				"location":        "Hamburg",
				"venue":           "Docks",
				"date":            time.Now().Add(24 * time.Hour),
				"popularity_rank": 1,
			},
		},
	}, "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestIngestRequiresAdminKey(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/admin/concerts/ingest", map[string]interface{}{
		"concerts": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchConcerts(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "alice")
	ingestTestConcerts(t, ts)

	w := ts.do(http.MethodGet, "/api/events/search?q=Phoenix", nil, bearer(tok)...)
	require.Equal(t, http.StatusOK, w.Code)
	concerts := decode(t, w)["concerts"].([]interface{})
	require.Len(t, concerts, 1)
	assert.Equal(t, "c1", concerts[0].(map[string]interface{})["concert_id"])
}

func TestGetConcert(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "alice")
	ingestTestConcerts(t, ts)

	w := ts.do(http.MethodGet, "/api/events/c2", nil, bearer(tok)...)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/events/ghost", nil, bearer(tok)...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendFlow(t *testing.T) {
	ts := newTestServer(t)
	aliceTok := ts.login(t, "alice")
	bobTok := ts.login(t, "bob")
	ingestTestConcerts(t, ts)

	w := ts.do(http.MethodPost, "/api/events/c1/attend", nil, bearer(aliceTok)...)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPost, "/api/events/c1/attend", nil, bearer(bobTok)...)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/events/c1/attendees", nil, bearer(aliceTok)...)
	require.Equal(t, http.StatusOK, w.Code)
	attendees := decode(t, w)["attendees"].([]interface{})
	assert.Len(t, attendees, 2)

	w = ts.do(http.MethodDelete, "/api/events/c1/attend", nil, bearer(bobTok)...)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/api/events/c1/attendees", nil, bearer(aliceTok)...)
	attendees = decode(t, w)["attendees"].([]interface{})
	assert.Len(t, attendees, 1)
}

func TestRecommendExcludesAttended(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "alice")
	ingestTestConcerts(t, ts)

	w := ts.do(http.MethodPost, "/api/events/c2/attend", nil, bearer(tok)...)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/events/recommend", nil, bearer(tok)...)
	require.Equal(t, http.StatusOK, w.Code)
	concerts := decode(t, w)["concerts"].([]interface{})
	require.Len(t, concerts, 1)
	assert.Equal(t, "c1", concerts[0].(map[string]interface{})["concert_id"])
}

func TestTrendingEndpoint(t *testing.T) {
	ts := newTestServer(t)
	aliceTok := ts.login(t, "alice")
	bobTok := ts.login(t, "bob")
	ingestTestConcerts(t, ts)

	ts.do(http.MethodPost, "/api/events/c2/attend", nil, bearer(aliceTok)...)
	ts.do(http.MethodPost, "/api/events/c2/attend", nil, bearer(bobTok)...)
	ts.do(http.MethodPost, "/api/events/c1/attend", nil, bearer(aliceTok)...)

	w := ts.do(http.MethodGet, "/api/events/trending", nil, bearer(aliceTok)...)
	require.Equal(t, http.StatusOK, w.Code)
	ids := decode(t, w)["concert_ids"].([]interface{})
	require.Len(t, ids, 2)
	assert.Equal(t, "c2", ids[0])
}
