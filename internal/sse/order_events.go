package sse

import (
	"context"
	"sync"

	"ms-ticketcodes/internal/models"
)

// OrderEventEmitter fans order status updates out to the SSE clients
// watching that order.
type OrderEventEmitter struct {
	clients     map[string][]chan models.OrderWithTickets
	clientMutex sync.RWMutex
	bufferSize  int
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		clients:    make(map[string][]chan models.OrderWithTickets),
		bufferSize: 4,
	}
}

// Subscribe registers a client for one order. The channel is closed once
// ctx is done.
func (e *OrderEventEmitter) Subscribe(ctx context.Context, orderID string) <-chan models.OrderWithTickets {
	clientChan := make(chan models.OrderWithTickets, e.bufferSize)

	e.clientMutex.Lock()
	e.clients[orderID] = append(e.clients[orderID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(orderID, clientChan)
	}()

	return clientChan
}

// Publish sends update to every client of orderID without blocking. Slow
// clients miss the update.
func (e *OrderEventEmitter) Publish(orderID string, update models.OrderWithTickets) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[orderID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *OrderEventEmitter) ClientCount(orderID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[orderID])
}

func (e *OrderEventEmitter) remove(orderID string, clientChan chan models.OrderWithTickets) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[orderID]) == 0 {
		delete(e.clients, orderID)
	}
}
