package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/APTrust/fixity/models"
	"github.com/op/go-logging"
	"io/ioutil"
	"net/http"
	"time"
)

// Alerter tells a human that a fixity check failed. Alerts are
// fire-and-forget: a failed alert never fails the job that raised it.
type Alerter interface {
	Alert(event *models.FixityEvent, location string) error
}

// Alert is the payload an Alerter sends.
type Alert struct {
	EventId       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Status        string    `json:"status"`
	ResourceId    string    `json:"resource_id"`
	ChildProperty string    `json:"child_property"`
	ChildId       string    `json:"child_id"`
	Location      string    `json:"location"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewAlert(event *models.FixityEvent, location string) *Alert {
	return &Alert{
		EventId:       event.Id,
		EventType:     event.Type,
		Status:        event.Status,
		ResourceId:    event.ResourceId,
		ChildProperty: event.ChildProperty,
		ChildId:       event.ChildId,
		Location:      location,
		Message:       event.Message,
		CreatedAt:     event.CreatedAt,
	}
}

// LogAlerter writes alerts to the message log at error level.
type LogAlerter struct {
	log *logging.Logger
}

func NewLogAlerter(log *logging.Logger) *LogAlerter {
	return &LogAlerter{log: log}
}

func (alerter *LogAlerter) Alert(event *models.FixityEvent, location string) error {
	alerter.log.Errorf("FIXITY ALERT: %s %s on %s at %s: %s",
		event.Type, event.Status, event.TrackedEntity().String(), location, event.Message)
	return nil
}

// WebhookAlerter POSTs each alert as JSON to a URL, and also logs it.
type WebhookAlerter struct {
	URL        string
	log        *logging.Logger
	httpClient *http.Client
}

func NewWebhookAlerter(url string, log *logging.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		URL:        url,
		log:        log,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (alerter *WebhookAlerter) Alert(event *models.FixityEvent, location string) error {
	alerter.log.Errorf("FIXITY ALERT: %s %s on %s at %s: %s",
		event.Type, event.Status, event.TrackedEntity().String(), location, event.Message)
	body, err := json.Marshal(NewAlert(event, location))
	if err != nil {
		return err
	}
	resp, err := alerter.httpClient.Post(alerter.URL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("Error posting alert to %s: %v", alerter.URL, err)
	}
	respBody, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Alert webhook %s returned status %d: %s",
			alerter.URL, resp.StatusCode, respBody)
	}
	return nil
}

// NewAlerter returns a WebhookAlerter if the config names a webhook,
// or a LogAlerter otherwise.
func NewAlerter(config *models.Config, log *logging.Logger) Alerter {
	if config.AlertWebhookURL != "" {
		return NewWebhookAlerter(config.AlertWebhookURL, log)
	}
	return NewLogAlerter(log)
}
