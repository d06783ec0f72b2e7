package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"busboard/internal/bus"
)

// payload is the JSON body posted for each delivered message.
type payload struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
}

// send posts one delivery to the webhook endpoint.
func send(client *http.Client, url string, p payload) error {
	buf, _ := json.Marshal(p)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// Subscriber builds a bus subscriber that forwards every delivered
// message to url. Send failures are logged, never surfaced to the
// publisher.
func Subscriber(name, url string, client *http.Client) *bus.Subscriber {
	if client == nil {
		client = http.DefaultClient
	}
	return &bus.Subscriber{
		Name: name,
		Deliver: func(m bus.Message) {
			if err := send(client, url, payload{Name: name, Content: m.Content, MessageID: m.ID}); err != nil {
				log.Printf("webhook %s: %v", name, err)
			}
		},
	}
}
