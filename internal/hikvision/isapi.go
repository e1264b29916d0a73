package hikvision

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultISAPITimeout = 5 * time.Second

// DeviceClient is the terminal-side surface the access service needs.
type DeviceClient interface {
	DeviceInfo(ctx context.Context) (*DeviceInfo, error)
	OpenDoor(ctx context.Context, doorNo int) error
}

// DeviceInfo is the subset of /ISAPI/System/deviceInfo we care about.
type DeviceInfo struct {
	XMLName         xml.Name `xml:"DeviceInfo" json:"-"`
	DeviceName      string   `xml:"deviceName" json:"device_name"`
	Model           string   `xml:"model" json:"model"`
	SerialNumber    string   `xml:"serialNumber" json:"serial_number"`
	FirmwareVersion string   `xml:"firmwareVersion" json:"firmware_version"`
	MACAddress      string   `xml:"macAddress" json:"mac_address"`
}

// ISAPIClient talks to one terminal over its ISAPI HTTP surface.
type ISAPIClient struct {
	baseURL string
	client  *http.Client
}

// NewISAPIClient builds a client for the terminal at host (IP or
// host:port) using the terminal's local credentials.
func NewISAPIClient(host, username, password string, timeout time.Duration) *ISAPIClient {
	if timeout <= 0 {
		timeout = defaultISAPITimeout
	}

	baseURL := host
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &ISAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: newDigestTransport(username, password, nil),
		},
	}
}

// DeviceInfo fetches model/serial/firmware identity from the terminal.
func (c *ISAPIClient) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ISAPI/System/deviceInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create device info request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device info returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read device info response: %w", err)
	}

	var info DeviceInfo
	if err := xml.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode device info: %w", err)
	}

	return &info, nil
}

// OpenDoor pulses the door relay. The terminal answers 200 with a
// ResponseStatus document; anything non-2xx means the relay did not fire.
func (c *ISAPIClient) OpenDoor(ctx context.Context, doorNo int) error {
	url := fmt.Sprintf("%s/ISAPI/AccessControl/RemoteControl/door/%d", c.baseURL, doorNo)
	payload := strings.NewReader("<RemoteControlDoor><cmd>open</cmd></RemoteControlDoor>")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, payload)
	if err != nil {
		return fmt.Errorf("failed to create door request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("door request failed: %w", err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("door control returned status %d", resp.StatusCode)
	}

	return nil
}
