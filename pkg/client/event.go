package client

import (
	"encoding/json"
	"fmt"

	"medaccess/pkg/model"
)

// EventClient posts payloads to the terminal webhook the way a Hikvision
// device would: raw bodies, arbitrary content types, no partner token.
type EventClient struct {
	httpClient *HttpClient
}

func NewEventClient(baseUrl string) *EventClient {
	return &EventClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *EventClient) PostJSON(body any) (*Response, error) {
	return c.httpClient.POST("/medical_access/hik/events/", body)
}

func (c *EventClient) PostRaw(rawBody []byte, contentType string) (*Response, error) {
	headers := map[string]string{"Content-Type": contentType}
	return c.httpClient.POSTRawWithHeaders("/medical_access/hik/events/", rawBody, headers)
}

func (c *EventClient) DecodeAck(resp *Response) (*model.EventAck, error) {
	var ack model.EventAck
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		return nil, fmt.Errorf("could not decode ack json:\n%+v\n%s", resp.ToString(), err)
	}
	return &ack, nil
}
