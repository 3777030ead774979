package loki

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type MockLogger struct{}

func (m *MockLogger) Error(msg string, args ...any) {
}

func Test_ConfigValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := New(context.Background(), Config{}, &MockLogger{})
	assert.Error(err)

	_, err = New(context.Background(), Config{Url: "not an url"}, &MockLogger{})
	assert.Error(err)

	_, err = New(context.Background(), Config{Url: "http://localhost:3100/loki/api/v1/push", Username: "user"}, &MockLogger{})
	assert.Error(err, "password is required with username")

	cfg := Config{Url: "http://localhost:3100/loki/api/v1/push"}
	pusher, err := New(context.Background(), cfg, &MockLogger{})
	require.NoError(t, err)
	defer pusher.Stop()
	assert.Equal(cfg.Url, pusher.config.Url)
	assert.Equal(1000, pusher.config.BatchMaxSize)
	assert.Equal(5*time.Second, pusher.config.BatchMaxWait)
	assert.Equal(map[string]string{}, pusher.config.Labels)
}

func newLokiServer(t *testing.T, received chan<- pushRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))

		reader, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var request pushRequest
		require.NoError(t, json.NewDecoder(reader).Decode(&request))
		received <- request
		w.WriteHeader(http.StatusNoContent)
	}))
}

func Test_Pusher_WhenBatchFull_ShouldSendStreamPerLabelSet(t *testing.T) {
	assert := assert.New(t)
	received := make(chan pushRequest, 1)
	server := newLokiServer(t, received)
	defer server.Close()

	pusher, err := New(context.Background(), Config{
		Url:          server.URL,
		BatchMaxSize: 3,
		BatchMaxWait: time.Minute,
		Labels:       map[string]string{"app": "car-tracker"},
		Username:     "user",
		Password:     "secret",
	}, &MockLogger{})
	require.NoError(t, err)
	defer pusher.Stop()

	at := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pusher.Push(Entry{Time: at, Level: "error", ErrorType: "storage", Message: "first"}))
	require.NoError(t, pusher.Push(Entry{Time: at, Level: "info", Message: "second",
		Fields: map[string]string{"search_id": "s1"}}))
	require.NoError(t, pusher.Push(Entry{Time: at, Level: "error", ErrorType: "storage", Message: "third"}))

	select {
	case request := <-received:
		require.Len(t, request.Streams, 2)

		errorsStream := request.Streams[0]
		assert.Equal(map[string]string{"app": "car-tracker", "level": "error", "error_type": "storage"}, errorsStream.Stream)
		require.Len(t, errorsStream.Values, 2)
		assert.Equal("1714521600000000000", errorsStream.Values[0][0])

		var entry Entry
		require.NoError(t, json.Unmarshal([]byte(errorsStream.Values[1][1]), &entry))
		assert.Equal("third", entry.Message)

		infoStream := request.Streams[1]
		assert.Equal("info", infoStream.Stream["level"])
		assert.NotContains(infoStream.Stream, "error_type")
		require.NoError(t, json.Unmarshal([]byte(infoStream.Values[0][1]), &entry))
		assert.Equal("s1", entry.Fields["search_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not sent")
	}
}

func Test_Pusher_Stop_ShouldFlushQueuedEntries(t *testing.T) {
	received := make(chan pushRequest, 1)
	server := newLokiServer(t, received)
	defer server.Close()

	pusher, err := New(context.Background(), Config{Url: server.URL, BatchMaxWait: time.Hour}, &MockLogger{})
	require.NoError(t, err)

	require.NoError(t, pusher.Push(Entry{Level: "warning", Message: "pending"}))
	pusher.Stop()

	select {
	case request := <-received:
		require.Len(t, request.Streams, 1)
		assert.Len(t, request.Streams[0].Values, 1)
	default:
		t.Fatal("queued entries were not sent on stop")
	}
}

func Test_Pusher_Push_WhenStopped_ShouldFail(t *testing.T) {
	pusher, err := New(context.Background(), Config{Url: "http://localhost:3100"}, &MockLogger{})
	require.NoError(t, err)

	pusher.Stop()

	assert.Error(t, pusher.Push(Entry{Message: "late"}))
}
