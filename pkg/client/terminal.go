package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"medaccess/pkg/model"
)

type TerminalClient struct {
	httpClient *HttpClient
}

func NewTerminalClient(baseUrl, apiToken string) *TerminalClient {
	httpClient := NewHttpClient(baseUrl)
	if apiToken != "" {
		httpClient.SetDefaultHeader("X-API-Token", apiToken)
	}
	return &TerminalClient{
		httpClient: httpClient,
	}
}

func (c *TerminalClient) Register(body any) (*Response, error) {
	return c.httpClient.POST("/medical_access/api/terminals/", body)
}

func (c *TerminalClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/medical_access/api/terminals/?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *TerminalClient) GetByID(id string) (*Response, error) {
	path := "/medical_access/api/terminals/id/" + url.PathEscape(id)
	return c.httpClient.GET(path)
}

func (c *TerminalClient) Update(id string, body any) (*Response, error) {
	path := "/medical_access/api/terminals/id/" + url.PathEscape(id)
	return c.httpClient.PATCH(path, body)
}

func (c *TerminalClient) Mode(ip string) (*Response, error) {
	return c.httpClient.GET("/medical_access/api/terminals/mode/?ip=" + url.QueryEscape(ip))
}

func (c *TerminalClient) Probe(id string) (*Response, error) {
	path := "/medical_access/api/terminals/id/" + url.PathEscape(id) + "/probe"
	return c.httpClient.POST(path, struct{}{})
}

func (c *TerminalClient) OpenDoor(id string) (*Response, error) {
	path := "/medical_access/api/terminals/id/" + url.PathEscape(id) + "/open"
	return c.httpClient.POST(path, struct{}{})
}

func (c *TerminalClient) ValidateOpen(id string, body any) (*Response, error) {
	path := "/medical_access/api/terminals/id/" + url.PathEscape(id) + "/validate-open"
	return c.httpClient.POST(path, body)
}

func (c *TerminalClient) DecodeTerminal(resp *Response) (*model.Terminal, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode terminal wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var terminal model.Terminal
	if err := json.Unmarshal(wrapper.Data, &terminal); err != nil {
		return nil, fmt.Errorf("could not decode terminal json:\n%+v\n%s", resp.ToString(), err)
	}

	return &terminal, nil
}

func (c *TerminalClient) DecodeTerminals(resp *Response) ([]*model.Terminal, *Metadata, error) {
	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var terminals []*model.Terminal
	if err := json.Unmarshal(wrapper.Data, &terminals); err != nil {
		return nil, nil, fmt.Errorf("could not decode terminal list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}

	return terminals, metadata, nil
}

func (c *TerminalClient) DecodeValidation(resp *Response) (*model.ValidateQRResponse, error) {
	var result model.ValidateQRResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("could not decode validation json:\n%+v\n%s", resp.ToString(), err)
	}
	return &result, nil
}
