/*
Package notify delivers committed-credit events to collaborator services.

PURPOSE:
  After a credit commits, two collaborators want to hear about it:
  - The user-profile service mirrors the new balance onto the user record
  - The notifications service fans the event out to the user's devices

  Delivery is FIRE-AND-FORGET. The ledger is the source of truth; a dead
  collaborator must never fail or delay a committed credit. Failures are
  logged and dropped, and the profile mirror self-heals on the next credit
  because every sync sends the absolute balance, not a delta.

ARCHITECTURE:
  Dispatcher implements loyalty.EventSink. PointsAdded enqueues a job onto
  a buffered channel and returns immediately; a small worker pool drains
  the channel and performs the HTTP calls with a bounded timeout. When the
  queue is full the event is dropped and logged rather than blocking the
  request path.

SEE ALSO:
  - loyalty/engine.go: Emits the events after commit
  - cmd/server/main.go: Starts and stops the dispatcher
*/
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/marquee/loyalty-engine/loyalty"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	requestTimeout   = 5 * time.Second
)

// Dispatcher asynchronously notifies collaborator services of loyalty events.
type Dispatcher struct {
	usersBaseURL  string // user-profile service, balance mirror
	eventsBaseURL string // notifications service, event fan-out

	client *http.Client
	jobs   chan loyalty.PointsAddedEvent
	wg     sync.WaitGroup
}

var _ loyalty.EventSink = (*Dispatcher)(nil)

// New creates a dispatcher and starts its worker pool. Either base URL may
// be empty to disable that collaborator.
func New(usersBaseURL, eventsBaseURL string) *Dispatcher {
	d := &Dispatcher{
		usersBaseURL:  usersBaseURL,
		eventsBaseURL: eventsBaseURL,
		client:        &http.Client{Timeout: requestTimeout},
		jobs:          make(chan loyalty.PointsAddedEvent, defaultQueueSize),
	}

	for i := 0; i < defaultWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// PointsAdded enqueues a committed-credit event for delivery. Never blocks:
// if the queue is full the event is dropped and logged.
func (d *Dispatcher) PointsAdded(ev loyalty.PointsAddedEvent) {
	select {
	case d.jobs <- ev:
	default:
		log.Printf("notify: queue full, dropping event for user %d", ev.UserID)
	}
}

// Stop drains the queue and waits for in-flight deliveries to finish.
// Call once, after the last PointsAdded.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.jobs {
		d.syncBalance(ev)
		d.publishEvent(ev)
	}
}

// syncBalance mirrors the absolute balance onto the user-profile service.
func (d *Dispatcher) syncBalance(ev loyalty.PointsAddedEvent) {
	if d.usersBaseURL == "" {
		return
	}

	url := fmt.Sprintf("%s/users/%d/points", d.usersBaseURL, ev.UserID)
	payload := map[string]int64{"points": ev.Balance}
	if err := d.post(url, payload); err != nil {
		log.Printf("notify: balance sync failed for user %d: %v", ev.UserID, err)
	}
}

// publishEvent fans the credit out through the notifications service.
func (d *Dispatcher) publishEvent(ev loyalty.PointsAddedEvent) {
	if d.eventsBaseURL == "" {
		return
	}

	payload := map[string]any{
		"event": "loyalty.points_added",
		"data": map[string]any{
			"user": map[string]any{
				"id":     ev.UserID,
				"points": ev.Balance,
			},
			"points": ev.Points,
		},
	}
	if err := d.post(d.eventsBaseURL+"/events", payload); err != nil {
		log.Printf("notify: event publish failed for user %d: %v", ev.UserID, err)
	}
}

func (d *Dispatcher) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := d.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
