package httpapi_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/readings/internal/httpapi"
	"github.com/BrandonDHaskell/readings/internal/logging"
	"github.com/BrandonDHaskell/readings/internal/readings/service"
	"github.com/BrandonDHaskell/readings/internal/readings/store/memory"
	"github.com/BrandonDHaskell/readings/internal/validation"
)

const deviceID = "36d5658a-6908-479e-887e-a949ec199272"

const payload = `{
  "id": "36d5658a-6908-479e-887e-a949ec199272",
  "readings": [
    {"timestamp": "2021-09-29T16:09:15+01:00", "count": 15},
    {"timestamp": "2021-09-29T16:08:15+01:00", "count": 2}
  ]
}`

type errorResponse struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details"`
}

// newTestServer wires up the full dependency graph using in-memory stores
// and returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, maxBody int64) *httptest.Server {
	t.Helper()

	svc := service.NewReadingService(memory.NewAggregateStore(), memory.NewIngestEventStore(), logging.Nop())
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logging.Nop(),
		Addr:           ":0",
		MaxBodyBytes:   maxBody,
		ReadingService: svc,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/readings", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// ── POST /readings ───────────────────────────────────────────────────────────

func TestReadings_StoreReplayAndQuery(t *testing.T) {
	ts := newTestServer(t, 0)

	first := postJSON(t, ts, payload)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, 2, decode[map[string]int](t, first)["stored"])

	replay := postJSON(t, ts, payload)
	require.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.Equal(t, 0, decode[map[string]int](t, replay)["stored"])

	latest := get(t, ts, "/devices/"+deviceID+"/latest")
	require.Equal(t, http.StatusOK, latest.StatusCode)
	assert.Equal(t, "2021-09-29T15:09:15.000Z", decode[map[string]string](t, latest)["latest_timestamp"])

	cumulative := get(t, ts, "/devices/"+deviceID+"/cumulative")
	require.Equal(t, http.StatusOK, cumulative.StatusCode)
	assert.Equal(t, int64(17), decode[map[string]int64](t, cumulative)["cumulative_count"])
}

func TestReadings_EquivalentOffsetsStoredOnce(t *testing.T) {
	ts := newTestServer(t, 0)
	id := uuid.NewString()

	a := postJSON(t, ts, `{"id":"`+id+`","readings":[{"timestamp":"2021-09-29T12:00:00-04:00","count":5}]}`)
	b := postJSON(t, ts, `{"id":"`+id+`","readings":[{"timestamp":"2021-09-29T16:00:00+00:00","count":500}]}`)

	total := decode[map[string]int](t, a)["stored"] + decode[map[string]int](t, b)["stored"]
	assert.Equal(t, 1, total)
}

func TestReadings_UppercaseDeviceID(t *testing.T) {
	ts := newTestServer(t, 0)
	upper := strings.ToUpper(deviceID)

	resp := postJSON(t, ts, `{"id":"`+upper+`","readings":[{"timestamp":"2021-09-29T16:09:15+01:00","count":15}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["stored"])

	cumulative := get(t, ts, "/devices/"+upper+"/cumulative")
	require.Equal(t, http.StatusOK, cumulative.StatusCode)
	assert.Equal(t, int64(15), decode[map[string]int64](t, cumulative)["cumulative_count"])
}

func TestReadings_InvalidPayload_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := postJSON(t, ts, `{"id":"nope"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "Invalid payload", body.Error)
	assert.Contains(t, body.Details, validation.FieldError{Path: "id", Message: "Invalid uuid"})
	assert.Contains(t, body.Details, validation.FieldError{Path: "readings", Message: "Required"})
}

func TestReadings_BadTimestampFormat_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := postJSON(t, ts, `{"id":"`+deviceID+`","readings":[{"timestamp":"yesterday","count":1}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "readings.0.timestamp", body.Details[0].Path)
}

func TestReadings_WrongJSONType_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := postJSON(t, ts, `{"id":"`+deviceID+`","readings":[{"timestamp":"2021-09-29T16:00:00Z","count":"many"}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid payload", decode[errorResponse](t, resp).Error)
}

func TestReadings_DuplicateTimestamp_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := postJSON(t, ts, `{"id":"`+deviceID+`","readings":[
		{"timestamp":"2021-09-29T16:09:15+01:00","count":15},
		{"timestamp":"2021-09-29T16:09:15+01:00","count":99}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "Duplicate timestamp in payload", body.Error)
	assert.Equal(t, []validation.FieldError{{Path: "readings", Message: "Duplicate timestamp in payload"}}, body.Details)
}

func TestReadings_InvalidJSON_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := postJSON(t, ts, `not json at all`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "Invalid JSON", body.Error)
	assert.Empty(t, body.Details)
}

func TestReadings_OversizedBody_413(t *testing.T) {
	ts := newTestServer(t, 64)

	resp := postJSON(t, ts, payload)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "Payload too large", decode[errorResponse](t, resp).Error)
}

func TestReadings_Protobuf(t *testing.T) {
	ts := newTestServer(t, 0)

	st, err := structpb.NewStruct(map[string]any{
		"id": deviceID,
		"readings": []any{
			map[string]any{"timestamp": "2021-09-29T16:09:15+01:00", "count": 15},
			map[string]any{"timestamp": "2021-09-29T16:08:15+01:00", "count": 2},
		},
	})
	require.NoError(t, err)
	raw, err := proto.Marshal(st)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/readings", "application/x-protobuf", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/x-protobuf", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &out))
	assert.Equal(t, float64(2), out.GetFields()["stored"].GetNumberValue())
}

func TestReadings_ProtobufGarbage_400(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, err := http.Post(ts.URL+"/readings", "application/x-protobuf", bytes.NewReader([]byte{0xff, 0xff, 0xff}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ── GET /devices/{id}/... ────────────────────────────────────────────────────

func TestDevices_Unknown_404(t *testing.T) {
	ts := newTestServer(t, 0)

	for _, path := range []string{"/devices/" + deviceID + "/latest", "/devices/" + deviceID + "/cumulative"} {
		resp := get(t, ts, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "Device not found", decode[errorResponse](t, resp).Error, path)
	}
}

func TestDevices_InvalidTimestampOnlyBatchCreatesNothing(t *testing.T) {
	ts := newTestServer(t, 0)

	// Matches the datetime pattern but is not a real calendar instant.
	resp := postJSON(t, ts, `{"id":"`+deviceID+`","readings":[{"timestamp":"2021-13-01T10:00:00Z","count":10}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 0, decode[map[string]int](t, resp)["stored"])

	assert.Equal(t, http.StatusNotFound, get(t, ts, "/devices/"+deviceID+"/latest").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, ts, "/devices/"+deviceID+"/cumulative").StatusCode)
}

// ── Misc ─────────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := get(t, ts, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)
	postJSON(t, ts, payload)

	resp := get(t, ts, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "readings_stored_total")
	assert.Contains(t, string(data), `route="/readings"`)
}

func TestUnknownRoute_404(t *testing.T) {
	ts := newTestServer(t, 0)

	resp := get(t, ts, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
