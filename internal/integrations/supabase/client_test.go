package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-contact/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", "service-key", "messages", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestListSince_BuildsPostgRESTQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/rest/v1/messages", r.URL.Path)
		require.Equal(t, "service-key", r.Header.Get("apikey"))
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		q := r.URL.Query()
		require.Equal(t, "id,created_at", q.Get("select"))
		require.Equal(t, "eq.1.2.3.4", q.Get("ip"))
		require.Equal(t, "gte.2026-10-15T09:30:00.000Z", q.Get("created_at"))
		require.Equal(t, "1", q.Get("limit"))

		_, _ = io.WriteString(w, `[{"id":42,"created_at":"2026-10-15T09:30:01.5+00:00"}]`)
	})

	since := time.Date(2026, 10, 15, 12, 30, 0, 0, time.FixedZone("EAT", 3*60*60))
	msgs, err := c.ListSince(context.Background(), "1.2.3.4", since, 1)
	require.NoError(t, err)
	require.Equal(t, []domain.Message{{
		ID:        "42",
		CreatedAt: time.Date(2026, 10, 15, 9, 30, 1, 500_000_000, time.UTC),
		IP:        "1.2.3.4",
	}}, msgs)
}

func TestListSince_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	msgs, err := c.ListSince(context.Background(), "1.2.3.4", time.Now(), 1)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestListSince_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"message":"boom"}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Invalid API key"}`},
		{name: "not an array", status: http.StatusOK, body: `{"id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.ListSince(context.Background(), "1.2.3.4", time.Now(), 1)
			require.Error(t, err)
		})
	}
}

func TestListSince_CountsRowsThatDoNotDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"created_at":"yesterday"},{"id":{"x":1},"created_at":7},{}]`)
	})
	msgs, err := c.ListSince(context.Background(), "1.2.3.4", time.Now(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		require.Equal(t, "1.2.3.4", m.IP)
	}
}

func TestInsertMessage_ReturnsRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, map[string]string{
			"name": "A", "email": "a@b.com", "subject": "S", "message": "M", "ip": "1.2.3.4",
		}, got)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"7d0f","created_at":"2026-10-15T09:30:01.123456+00:00",
			"name":"A","email":"a@b.com","subject":"S","message":"M","ip":"1.2.3.4"}]`)
	})

	row, err := c.InsertMessage(context.Background(), domain.NewMessage{
		Name: "A", Email: "a@b.com", Subject: "S", Message: "M", IP: "1.2.3.4",
	})
	require.NoError(t, err)
	require.Equal(t, domain.Message{
		ID:        "7d0f",
		CreatedAt: time.Date(2026, 10, 15, 9, 30, 1, 123_456_000, time.UTC),
		Name:      "A", Email: "a@b.com", Subject: "S", Message: "M", IP: "1.2.3.4",
	}, row)
}

func TestInsertMessage_SingleObjectResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":9,"created_at":"2026-10-15T09:30:01Z","name":"A"}`)
	})
	row, err := c.InsertMessage(context.Background(), domain.NewMessage{Name: "A", IP: "1.2.3.4"})
	require.NoError(t, err)
	require.Equal(t, "9", row.ID)
	require.Equal(t, "1.2.3.4", row.IP)
}

func TestInsertMessage_SurfacesPostgRESTMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"23502","details":null,"hint":null,"message":"null value in column \"ip\" violates not-null constraint"}`)
	})

	_, err := c.InsertMessage(context.Background(), domain.NewMessage{Name: "A"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatusCode())
	require.Equal(t, "23502", apiErr.Code)
	require.Equal(t, `null value in column "ip" violates not-null constraint`, apiErr.StoreMessage())
}

func TestInsertMessage_EmptyRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	_, err := c.InsertMessage(context.Background(), domain.NewMessage{IP: "1.2.3.4"})
	require.ErrorContains(t, err, "no rows")
}

func TestAPIError_StoreMessageFallbacks(t *testing.T) {
	require.Equal(t, "upstream down", (&APIError{StatusCode: 502, Body: "upstream down"}).StoreMessage())
	require.Equal(t, "Bad Gateway", (&APIError{StatusCode: 502}).StoreMessage())
}

func TestRowID(t *testing.T) {
	id, err := rowID(json.RawMessage(`12`))
	require.NoError(t, err)
	require.Equal(t, "12", id)

	id, err = rowID(json.RawMessage(`"b1c2"`))
	require.NoError(t, err)
	require.Equal(t, "b1c2", id)

	_, err = rowID(json.RawMessage(`null`))
	require.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "key", "messages")
	require.ErrorContains(t, err, "project url")

	_, err = NewClient("https://x.supabase.co", " ", "messages")
	require.ErrorContains(t, err, "service key")

	c, err := NewClient("https://x.supabase.co/", "key", "")
	require.NoError(t, err)
	require.Equal(t, "https://x.supabase.co/rest/v1/messages", c.restURL)
}
