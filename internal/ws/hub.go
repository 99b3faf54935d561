package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// AllProjects subscribes to events of every project.
const AllProjects = "*"

const broadcastQueue = 256

// Hub fans status events out to subscribers keyed by project ID.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
}

type message struct {
	projectID string
	payload   []byte
}

type subscription struct {
	projectID string
	client    Subscriber
}

// NewHub creates an initialized Hub and starts its loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, broadcastQueue),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.projectID]; !ok {
				h.clients[sub.projectID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.projectID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			h.remove(sub.projectID, sub.client)
		case msg := <-h.broadcast:
			h.deliver(msg.projectID, msg.payload)
			if msg.projectID != AllProjects {
				h.deliver(AllProjects, msg.payload)
			}
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = map[string]map[Subscriber]struct{}{}
			return
		}
	}
}

func (h *Hub) deliver(projectID string, payload []byte) {
	for c := range h.clients[projectID] {
		if err := c.Send(payload); err != nil {
			c.Close()
			h.remove(projectID, c)
		}
	}
}

func (h *Hub) remove(projectID string, client Subscriber) {
	if clients, ok := h.clients[projectID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, projectID)
		}
	}
}

// Register adds a client to a project stream.
func (h *Hub) Register(projectID string, client Subscriber) {
	select {
	case h.register <- subscription{projectID: projectID, client: client}:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(projectID string, client Subscriber) {
	select {
	case h.unreg <- subscription{projectID: projectID, client: client}:
	case <-h.done:
	}
}

// Broadcast queues payload for the project's subscribers and the
// AllProjects subscribers. It never blocks: when the queue is full the
// event is dropped and Broadcast returns false.
func (h *Hub) Broadcast(projectID string, payload []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- message{projectID: projectID, payload: payload}:
		return true
	default:
		return false
	}
}

// Close stops the hub and closes every subscriber.
func (h *Hub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
