package events

import (
	"encoding/json"
	"runtime/debug"
	"sync"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("docmerge.events")

// JobEvent is sent to subscribers whenever a merge job changes state
type JobEvent struct {
	Type string       `json:"type"` // "job"
	Job  *db.MergeJob `json:"job"`
}

// Subscriber is a websocket connection listening for job events
type Subscriber struct {
	ID string
	// JobID limits delivery to one job when set.
	JobID string
	Conn  *websocket.Conn
	Hub   *Hub
	Send  chan []byte
}

type envelope struct {
	jobID string
	data  []byte
}

// Hub fans job events out to subscribers
type Hub struct {
	subscribers map[string]*Subscriber
	broadcast   chan envelope
	Register    chan *Subscriber
	Unregister  chan *Subscriber
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
}

// NewHub creates a hub; call Run to start delivering
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		broadcast:   make(chan envelope, 256),
		Register:    make(chan *Subscriber),
		Unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
	}
}

// Run handles hub operations until Stop is called
func (h *Hub) Run() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("panic in hub.Run: %v\n%s", rec, debug.Stack())
		}
	}()
	log.Debug("hub started")
	for {
		select {
		case sub := <-h.Register:
			h.mutex.Lock()
			h.subscribers[sub.ID] = sub
			h.mutex.Unlock()
			log.Infof("subscriber %s registered", sub.ID)

		case sub := <-h.Unregister:
			h.remove(sub.ID)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for id, sub := range h.subscribers {
				if sub.JobID != "" && sub.JobID != msg.jobID {
					continue
				}
				select {
				case sub.Send <- msg.data:
				default:
					// drop slow subscriber
					close(sub.Send)
					delete(h.subscribers, id)
					log.Warningf("dropped slow subscriber %s", id)
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for id, sub := range h.subscribers {
				close(sub.Send)
				delete(h.subscribers, id)
			}
			h.mutex.Unlock()
			log.Debug("hub stopped")
			return
		}
	}
}

// Stop ends Run and closes every subscriber's send channel
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.Send)
		log.Infof("subscriber %s left", id)
	}
}

// Publish queues a job event; it never blocks the caller
func (h *Hub) Publish(job *db.MergeJob) {
	if job == nil {
		return
	}
	data, err := json.Marshal(JobEvent{Type: "job", Job: job})
	if err != nil {
		log.Errorf("failed to encode job event: %v", err)
		return
	}
	select {
	case h.broadcast <- envelope{jobID: job.ID, data: data}:
	default:
		log.Warningf("event queue full, dropping update for job %s", job.ID)
	}
}

// Count returns the number of registered subscribers
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers)
}
