package sigenergy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homegrid/battsitter/core/model"
)

// fakeCloud imitates the Sigen cloud endpoints the client touches.
type fakeCloud struct {
	mu           sync.Mutex
	tokenGrants  int
	manualBodies []map[string]any
	batteryPower float64
	batterySoc   float64
	mode         int
	modeFails    bool
	manualCode   int
	tokenExpires int
}

func (f *fakeCloud) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.FormValue("grant_type"))
		assert.Equal(t, "owner@example.com", r.FormValue("username"))
		f.mu.Lock()
		f.tokenGrants++
		f.mu.Unlock()
		fmt.Fprintf(w, `{"code":0,"data":{"access_token":"tok-1","expires_in":%d}}`, f.tokenExpires)
	})
	mux.HandleFunc("/device/owner/station/home", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"code":0,"data":{"stationId":4242}}`)
	})
	mux.HandleFunc("/device/sigen/station/energyflow", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4242", r.URL.Query().Get("id"))
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprintf(w, `{"code":0,"data":{"batterySoc":%g,"batteryPower":%g}}`, f.batterySoc, f.batteryPower)
	})
	mux.HandleFunc("/device/setting/operational/mode", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.modeFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"code":0,"data":%d}`, f.mode)
	})
	mux.HandleFunc("/device/energy-profile/instant/manunal", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.manualBodies = append(f.manualBodies, body)
		code := f.manualCode
		f.mu.Unlock()
		fmt.Fprintf(w, `{"code":%d,"msg":"x"}`, code)
	})
	return mux
}

func newTestClient(t *testing.T, cloud *fakeCloud) *Client {
	t.Helper()
	if cloud.tokenExpires == 0 {
		cloud.tokenExpires = 3600
	}
	srv := httptest.NewServer(cloud.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "eu", "owner@example.com", "hunter2", time.Second)
}

func TestFetchStatus(t *testing.T) {
	cloud := &fakeCloud{batterySoc: 68.5, batteryPower: 1200, mode: 1}
	c := newTestClient(t, cloud)

	obs, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.IsCharging)
	assert.Equal(t, 68.5, obs.StateOfCharge)
	assert.Equal(t, 1200.0, obs.PowerW)
	assert.Equal(t, model.ModeAutonomous, obs.Mode)
}

func TestFetchStatusDischarging(t *testing.T) {
	cloud := &fakeCloud{batterySoc: 42, batteryPower: -800, mode: 1}
	c := newTestClient(t, cloud)

	obs, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, obs.IsCharging)
	assert.Equal(t, -800.0, obs.PowerW)
}

func TestFetchStatusRemoteEMSMode(t *testing.T) {
	cloud := &fakeCloud{batteryPower: 900, mode: modeRemoteEMS}
	c := newTestClient(t, cloud)

	obs, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModeManualOverride, obs.Mode)
}

func TestFetchStatusModeLookupDegradesToUnknown(t *testing.T) {
	cloud := &fakeCloud{batteryPower: 900, modeFails: true}
	c := newTestClient(t, cloud)

	obs, err := c.FetchStatus(context.Background())
	require.NoError(t, err, "mode is diagnostic, its failure must not fail the observation")
	assert.Equal(t, model.ModeUnknown, obs.Mode)
	assert.True(t, obs.IsCharging)
}

func TestEnableManualChargePayload(t *testing.T) {
	cloud := &fakeCloud{}
	c := newTestClient(t, cloud)

	require.NoError(t, c.EnableManualCharge(context.Background(), 1.5, 30))

	require.Len(t, cloud.manualBodies, 1)
	body := cloud.manualBodies[0]
	assert.Equal(t, true, body["enable"])
	assert.Equal(t, 4242.0, body["stationId"])
	assert.Equal(t, "0", body["mode"])
	// Duration and power travel as strings on this API.
	assert.Equal(t, "30", body["duration"])
	assert.Equal(t, "1.5", body["powerLimitation"])
}

func TestDisableManualChargePayload(t *testing.T) {
	cloud := &fakeCloud{}
	c := newTestClient(t, cloud)

	require.NoError(t, c.DisableManualCharge(context.Background()))

	require.Len(t, cloud.manualBodies, 1)
	body := cloud.manualBodies[0]
	assert.Equal(t, false, body["enable"])
	assert.Equal(t, "0", body["duration"])
	assert.Equal(t, "0", body["powerLimitation"])
}

func TestManualChargeRejected(t *testing.T) {
	cloud := &fakeCloud{manualCode: 1001}
	c := newTestClient(t, cloud)

	err := c.EnableManualCharge(context.Background(), 1, 30)
	assert.ErrorContains(t, err, "rejected")
}

func TestTokenReuseAndRefresh(t *testing.T) {
	cloud := &fakeCloud{batteryPower: 100, mode: 1}
	c := newTestClient(t, cloud)

	_, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	_, err = c.FetchStatus(context.Background())
	require.NoError(t, err)

	cloud.mu.Lock()
	grants := cloud.tokenGrants
	cloud.mu.Unlock()
	assert.Equal(t, 1, grants, "token must be cached across calls")
}

func TestTokenRefreshNearExpiry(t *testing.T) {
	cloud := &fakeCloud{batteryPower: 100, mode: 1, tokenExpires: 30}
	c := newTestClient(t, cloud)

	// expires_in 30s is inside the refresh margin, so every call re-grants.
	_, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	_, err = c.FetchStatus(context.Background())
	require.NoError(t, err)

	cloud.mu.Lock()
	grants := cloud.tokenGrants
	cloud.mu.Unlock()
	assert.Greater(t, grants, 1)
}

func TestBaseURLForRegion(t *testing.T) {
	assert.Equal(t, "https://api-eu.sigencloud.com/", BaseURLForRegion("eu"))
	assert.Equal(t, "https://api-apac.sigencloud.com/", BaseURLForRegion("apac"))
}
