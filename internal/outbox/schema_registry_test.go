package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchemaRegistryRegistersSchema(t *testing.T) {
	var gotPath, gotType string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":17}`))
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL+"/", time.Second)
	id, err := client.EnsureSchema(context.Background(), "roster_events-roster.participant_signed_up", `{"type":"object"}`)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Equal(t, "/subjects/roster_events-roster.participant_signed_up/versions", gotPath)
	require.Equal(t, "application/vnd.schemaregistry.v1+json", gotType)
	require.Equal(t, "JSON", body["schemaType"])
	require.Equal(t, `{"type":"object"}`, body["schema"])
}

func TestSchemaRegistryFallsBackToLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error_code":409}`))
			return
		}
		require.Equal(t, "/subjects/roster_events-x/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":5,"version":3}`))
	}))
	defer server.Close()

	id, err := NewSchemaRegistryClient(server.URL, 0).EnsureSchema(context.Background(), "roster_events-x", "{}")
	require.NoError(t, err)
	require.Equal(t, 5, id)
}

func TestSchemaRegistryJoinsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewSchemaRegistryClient(server.URL, time.Second).EnsureSchema(context.Background(), "missing", "{}")
	require.Error(t, err)
	require.ErrorIs(t, err, errSubjectNotFound)
	require.Contains(t, err.Error(), "boom")
}
