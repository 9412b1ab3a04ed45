// Package myenergi implements the Zappi charger status source against the
// myenergi director API.
package myenergi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/homegrid/battsitter/core/model"
	"github.com/homegrid/battsitter/infra/logger"
)

// DefaultBaseURL is the myenergi director endpoint.
const DefaultBaseURL = "https://s18.myenergi.net"

// Client polls a single Zappi charger.
type Client struct {
	baseURL    string
	hubSerial  string
	apiKey     string
	serial     string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a Zappi status client. baseURL may be empty to use the
// default director endpoint.
func NewClient(baseURL, hubSerial, apiKey, serial string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		hubSerial:  hubSerial,
		apiKey:     apiKey,
		serial:     serial,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.New("myenergi"),
	}
}

// Zappi charger status codes (sta field).
const (
	staPaused    = 1
	staCharging  = 3
	staBoosting  = 4
	staCompleted = 5
)

type zappiStatus struct {
	Serial     int64  `json:"sno"`
	Status     int    `json:"sta"`
	PlugStatus string `json:"pst"`
	ChargeMode int    `json:"zmo"`
}

type statusResponse struct {
	Zappi []zappiStatus `json:"zappi"`
}

// FetchStatus polls the charger and maps the vendor codes onto the
// observation model. Unknown status codes map to ChargerOther rather than an
// error: the engine only needs to distinguish drawing power from idle.
func (c *Client) FetchStatus(ctx context.Context) (model.ChargerObservation, error) {
	url := fmt.Sprintf("%s/cgi-jstatus-Z%s", c.baseURL, c.serial)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ChargerObservation{}, fmt.Errorf("myenergi: build request: %w", err)
	}
	req.SetBasicAuth(c.hubSerial, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ChargerObservation{}, fmt.Errorf("myenergi: fetch status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.ChargerObservation{}, fmt.Errorf("myenergi: status %s", resp.Status)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.ChargerObservation{}, fmt.Errorf("myenergi: decode status: %w", err)
	}
	if len(body.Zappi) == 0 {
		return model.ChargerObservation{}, fmt.Errorf("myenergi: no zappi in response")
	}
	z := body.Zappi[0]

	obs := model.ChargerObservation{
		// Plug status "A" means no EV connected; B*/C* are connected.
		CarConnected:  z.PlugStatus != "" && z.PlugStatus != "A",
		ChargingState: mapChargerState(z.Status),
	}
	c.log.Debugw("zappi status", map[string]any{
		"sta": z.Status,
		"pst": z.PlugStatus,
		"zmo": z.ChargeMode,
	})
	return obs, nil
}

func mapChargerState(sta int) model.ChargerState {
	switch sta {
	case staPaused, staCompleted:
		return model.ChargerIdle
	case staCharging:
		return model.ChargerCharging
	case staBoosting:
		return model.ChargerBoosting
	default:
		return model.ChargerOther
	}
}
