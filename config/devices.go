package config

import "fmt"

// ZappiConfig holds the myenergi credentials and charger identity.
type ZappiConfig struct {
	// HubSerial is the myenergi hub serial number (on the device label).
	HubSerial string `json:"hub_serial"`
	// APIKey is the myenergi API key generated in the app.
	APIKey string `json:"api_key"`
	// Serial is the Zappi charger serial number.
	Serial string `json:"serial"`
	// APIURL overrides the director endpoint, mainly for tests.
	APIURL         string `json:"api_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ZappiConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c ZappiConfig) Validate() error {
	if c.HubSerial == "" || c.APIKey == "" {
		return fmt.Errorf("zappi: hub_serial and api_key are required")
	}
	if c.Serial == "" {
		return fmt.Errorf("zappi: serial is required")
	}
	return nil
}

// SigenergyConfig holds the Sigen cloud credentials and override parameters.
type SigenergyConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Region selects the cloud endpoint: eu, us, cn or apac.
	Region string `json:"region"`
	// ChargingPower is the override power in kW while the EV charges.
	ChargingPower float64 `json:"charging_power"`
	// ChargeDurationMinutes is the manual charge boost window.
	ChargeDurationMinutes int `json:"charge_duration_minutes"`
	// APIURL overrides the regional endpoint, mainly for tests.
	APIURL         string `json:"api_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SigenergyConfig) SetDefaults() {
	if c.Region == "" {
		c.Region = "eu"
	}
	if c.ChargingPower <= 0 {
		c.ChargingPower = 1
	}
	if c.ChargeDurationMinutes <= 0 {
		c.ChargeDurationMinutes = 30
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

var validRegions = map[string]bool{"eu": true, "us": true, "cn": true, "apac": true}

// Validate checks mandatory fields.
func (c SigenergyConfig) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("sigenergy: username and password are required")
	}
	if !validRegions[c.Region] {
		return fmt.Errorf("sigenergy: unknown region %s", c.Region)
	}
	return nil
}

// PollingConfig controls the cycle cadence.
type PollingConfig struct {
	IntervalSeconds     int `json:"interval_seconds"`
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *PollingConfig) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 30
	}
	if c.FetchTimeoutSeconds == 0 {
		c.FetchTimeoutSeconds = 10
	}
}

// Validate checks the cadence is usable.
func (c PollingConfig) Validate() error {
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("polling: interval_seconds must be positive")
	}
	if c.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("polling: fetch_timeout_seconds must be positive")
	}
	return nil
}
