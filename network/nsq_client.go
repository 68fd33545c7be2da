package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"
)

// Scheduler puts jobs into work topics. Enqueue makes the job
// available at once. EnqueueLater makes it available after delay.
type Scheduler interface {
	Enqueue(topic string, job interface{}) error
	EnqueueLater(topic string, job interface{}, delay time.Duration) error
}

// NSQStats contains info about the status of NSQ and its topics
// and queues. This info comes from a GET call to the /stats endpoint.
// These structs decode the subset of nsqd's stats JSON we read, so
// the client does not import the nsqd module for its stats types.
type NSQStats struct {
	Version string          `json:"version"`
	Health  string          `json:"health"`
	Topics  []NSQTopicStats `json:"topics"`
}

// NSQTopicStats holds the parts of nsqd's topic stats we use.
type NSQTopicStats struct {
	TopicName    string            `json:"topic_name"`
	Depth        int64             `json:"depth"`
	MessageCount uint64            `json:"message_count"`
	Paused       bool              `json:"paused"`
	Channels     []NSQChannelStats `json:"channels"`
}

type NSQChannelStats struct {
	ChannelName   string `json:"channel_name"`
	Depth         int64  `json:"depth"`
	InFlightCount int    `json:"in_flight_count"`
	DeferredCount int    `json:"deferred_count"`
	MessageCount  uint64 `json:"message_count"`
	RequeueCount  uint64 `json:"requeue_count"`
	TimeoutCount  uint64 `json:"timeout_count"`
}

// GetTopic returns stats for the named topic, or nil.
func (stats *NSQStats) GetTopic(name string) *NSQTopicStats {
	for i := range stats.Topics {
		if stats.Topics[i].TopicName == name {
			return &stats.Topics[i]
		}
	}
	return nil
}

type NSQClient struct {
	URL        string
	httpClient *http.Client
}

// Returns a new NSQ client that will connect to the NSQ server
// and the specified url. The URL is typically available through
// Config.NsqdHttpAddress, and usually ends with :4151. This is
// the URL to which we post jobs we want to queue, and from
// which our workers read.
//
// Note that this client provides write access to queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{
		URL:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Enqueue posts the JSON form of job to the specified topic.
func (client *NSQClient) Enqueue(topic string, job interface{}) error {
	return client.publish(topic, job, 0)
}

// EnqueueLater posts job to topic, and nsqd holds it for delay
// before delivering it.
func (client *NSQClient) EnqueueLater(topic string, job interface{}, delay time.Duration) error {
	return client.publish(topic, job, delay)
}

func (client *NSQClient) publish(topic string, job interface{}, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("Cannot serialize job for topic %s: %v", topic, err)
	}
	params := url.Values{}
	params.Set("topic", topic)
	if delay > 0 {
		params.Set("defer", fmt.Sprintf("%d", delay.Milliseconds()))
	}
	pubUrl := fmt.Sprintf("%s/pub?%s", client.URL, params.Encode())
	resp, err := client.httpClient.Post(pubUrl, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", pubUrl)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	respBody, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyText := "[no response body]"
		if len(respBody) > 0 {
			bodyText = string(respBody)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}

// GetStats returns basic stats for all topics from nsqd's /stats
// endpoint.
func (client *NSQClient) GetStats() (*NSQStats, error) {
	statsUrl := fmt.Sprintf("%s/stats?format=json", client.URL)
	resp, err := client.httpClient.Get(statsUrl)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NSQ returned status code %d, body: %s",
			resp.StatusCode, body)
	}
	stats := &NSQStats{}
	err = json.Unmarshal(body, stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
