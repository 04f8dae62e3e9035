package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

// Event types
const (
	EventOrderCreated   = "order_created"
	EventOrderUpdate    = "order_update"
	EventOrderVoided    = "order_voided"
	EventStockAlert     = "stock_alert"
	EventRegisterUpdate = "register_update"
	EventStaffNotif     = "staff_notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// KDSHub holds every connected kitchen/staff screen keyed by connection.
type KDSHub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var kdsHub = KDSHub{
	clients: make(map[*websocket.Conn]string),
}

func RegisterClient(conn *websocket.Conn, role string) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	kdsHub.clients[conn] = role
}

func UnregisterClient(conn *websocket.Conn) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	delete(kdsHub.clients, conn)
	conn.Close()
}

// ClientCount reports how many screens are connected.
func ClientCount() int {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	return len(kdsHub.clients)
}

func BroadcastOrderCreated(order models.Order) {
	broadcast(Message{Event: EventOrderCreated, Data: order})
}

func BroadcastOrderUpdate(order models.Order) {
	broadcast(Message{Event: EventOrderUpdate, Data: order})
}

func BroadcastOrderVoided(order models.Order) {
	broadcast(Message{Event: EventOrderVoided, Data: order})
}

// BroadcastStockAlert pushes low or exhausted ingredients to staff screens.
func BroadcastStockAlert(data interface{}) {
	broadcast(Message{Event: EventStockAlert, Data: data})
}

func BroadcastRegisterUpdate(session models.RegisterSession) {
	broadcast(Message{Event: EventRegisterUpdate, Data: session})
}

func BroadcastStaffNotification(message string) {
	broadcast(Message{Event: EventStaffNotif, Data: message})
}

func BroadcastMessage(msg Message) {
	broadcast(msg)
}

// writeWait bounds how long one screen may hold up a broadcast.
const writeWait = 2 * time.Second

func broadcast(msg Message) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()

	if len(kdsHub.clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling message: %v", err)
		return
	}

	deadline := time.Now().Add(writeWait)
	for conn, role := range kdsHub.clients {
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event": msg.Event,
				"role":  role,
			}).Errorf("Dropping client after failed send: %v", err)
			delete(kdsHub.clients, conn)
			conn.Close()
		}
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"event":   msg.Event,
		"clients": len(kdsHub.clients),
	}).Debug("Broadcast sent")
}
