package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"medaccess/pkg/model"
)

type AppointmentClient struct {
	httpClient *HttpClient
}

func NewAppointmentClient(baseUrl, apiToken string) *AppointmentClient {
	httpClient := NewHttpClient(baseUrl)
	if apiToken != "" {
		httpClient.SetDefaultHeader("X-API-Token", apiToken)
	}
	return &AppointmentClient{
		httpClient: httpClient,
	}
}

func (c *AppointmentClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/medical_access/api/create-appointment/", body)
}

func (c *AppointmentClient) CreateRaw(rawBody []byte) (*Response, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	return c.httpClient.POSTRawWithHeaders("/medical_access/api/create-appointment/", rawBody, headers)
}

func (c *AppointmentClient) ValidateQR(body any) (*Response, error) {
	return c.httpClient.POST("/medical_access/api/validate-qr/", body)
}

func (c *AppointmentClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/medical_access/api/appointments/?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *AppointmentClient) GetByID(id string) (*Response, error) {
	path := "/medical_access/api/appointments/id/" + url.PathEscape(id)
	return c.httpClient.GET(path)
}

// Revoke posts an empty object: the route takes no fields but the API only
// accepts JSON bodies.
func (c *AppointmentClient) Revoke(id string) (*Response, error) {
	path := "/medical_access/api/appointments/id/" + url.PathEscape(id) + "/revoke"
	return c.httpClient.POST(path, struct{}{})
}

func (c *AppointmentClient) Stats(period string) (*Response, error) {
	path := "/medical_access/api/stats/"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	return c.httpClient.GET(path)
}

func (c *AppointmentClient) DecodeCreated(resp *Response) (*model.AppointmentCreated, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode created wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var created model.AppointmentCreated
	if err := json.Unmarshal(wrapper.Data, &created); err != nil {
		return nil, fmt.Errorf("could not decode created json:\n%+v\n%s", resp.ToString(), err)
	}

	return &created, nil
}

func (c *AppointmentClient) DecodeValidation(resp *Response) (*model.ValidateQRResponse, error) {
	var result model.ValidateQRResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("could not decode validation json:\n%+v\n%s", resp.ToString(), err)
	}
	return &result, nil
}

func (c *AppointmentClient) DecodeAppointment(resp *Response) (*model.Appointment, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode appointment wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var appointment model.Appointment
	if err := json.Unmarshal(wrapper.Data, &appointment); err != nil {
		return nil, fmt.Errorf("could not decode appointment json:\n%+v\n%s", resp.ToString(), err)
	}

	return &appointment, nil
}

func (c *AppointmentClient) DecodeAppointments(resp *Response) ([]*model.Appointment, *Metadata, error) {
	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var appointments []*model.Appointment
	if err := json.Unmarshal(wrapper.Data, &appointments); err != nil {
		return nil, nil, fmt.Errorf("could not decode appointment list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}

	return appointments, metadata, nil
}

func (c *AppointmentClient) DecodeStats(resp *Response) (*model.AccessStats, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode stats wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var stats model.AccessStats
	if err := json.Unmarshal(wrapper.Data, &stats); err != nil {
		return nil, fmt.Errorf("could not decode stats json:\n%+v\n%s", resp.ToString(), err)
	}

	return &stats, nil
}
