package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/config"
	"airguard/internal/model"
)

func TestDecodeSample(t *testing.T) {
	s, err := DecodeSample([]byte(`{"gas": 10000, "temp": 22.5, "hum": 40, "press": 1013.2}`))
	require.NoError(t, err)
	assert.Equal(t, &model.Sample{GasOhms: 10000, TemperatureC: 22.5, HumidityPct: 40, PressureHPa: 1013.2}, s)
}

func TestDecodeSampleDoubleEncoded(t *testing.T) {
	s, err := DecodeSample([]byte(`"{\"gas\": 9000, \"temp\": 21, \"hum\": 45, \"press\": 1000}"`))
	require.NoError(t, err)
	assert.Equal(t, 9000.0, s.GasOhms)
}

func TestDecodeSampleNoData(t *testing.T) {
	for _, in := range []string{"", "  ", "null"} {
		s, err := DecodeSample([]byte(in))
		assert.NoError(t, err)
		assert.Nil(t, s)
	}
}

func TestDecodeSampleMalformed(t *testing.T) {
	cases := map[string]string{
		"missing field": `{"gas": 10000, "temp": 22, "hum": 40}`,
		"non numeric":   `{"gas": "abc", "temp": 22, "hum": 40, "press": 1013}`,
		"bad json":      `{"gas": 10000,`,
		"zero gas":      `{"gas": 0, "temp": 22, "hum": 40, "press": 1013}`,
		"humidity >100": `{"gas": 10000, "temp": 22, "hum": 140, "press": 1013}`,
		"not finite":    `{"gas": "Inf", "temp": 22, "hum": 40, "press": 1013}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := DecodeSample([]byte(in))
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrMalformedSample)
		})
	}
}

func TestHTTPBridgeFetchAndDisplay(t *testing.T) {
	var faces []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Args []string `json:"args"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/call/getAll":
			_, _ = w.Write([]byte(`{"gas": 12000, "temp": 23, "hum": 38, "press": 1009}`))
		case "/call/setFace":
			faces = append(faces, body.Args...)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewHTTPBridge(srv.URL+"/", time.Second)
	s, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12000.0, s.GasOhms)
	require.NoError(t, b.SetDisplay(context.Background(), "2"))
	assert.Equal(t, []string{"2"}, faces)
}

func TestHTTPBridgeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewHTTPBridge(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}

func TestReplaySourceCSVAndJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	content := "press,hum,temp,gas\n" +
		"1013,40,22,10000\n" +
		"\n" +
		"# comment\n" +
		"1013,40,22,oops\n" +
		`{"gas": 5000, "temp": 22, "hum": 40, "press": 1013}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := OpenReplay(path)
	require.NoError(t, err)
	defer src.Close()
	ctx := context.Background()

	s, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Sample{GasOhms: 10000, TemperatureC: 22, HumidityPct: 40, PressureHPa: 1013}, *s)

	_, err = src.Fetch(ctx)
	assert.ErrorIs(t, err, ErrMalformedSample)

	s, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, s.GasOhms)

	s, err = src.Fetch(ctx)
	assert.NoError(t, err)
	assert.Nil(t, s, "EOF is no data")
}

func TestReplaySourceHeaderless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte("8000, 21, 45, 1000\n"), 0o644))
	b, err := New(config.BridgeConfig{Driver: "replay", Replay: config.ReplayBridgeConfig{Path: path}}, nil)
	require.NoError(t, err)
	defer b.Close()
	s, err := b.Source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Sample{GasOhms: 8000, TemperatureC: 21, HumidityPct: 45, PressureHPa: 1000}, *s)
	assert.NoError(t, b.Display.SetDisplay(context.Background(), "0"))
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(config.BridgeConfig{Driver: "serial"}, nil)
	assert.Error(t, err)
}
