package socket

import (
	"fmt"
	"log"

	"ridepool_server/models"

	socketio "github.com/googollee/go-socket.io"
)

// groupsRoom is the room every subscribed client joins for operation events
const groupsRoom = "groups"

// NotificationServer fans operation outcomes out to connected clients over
// Socket.IO. It implements the reconciliation engine's Notifier, emitting
// exactly one event per completed operation.
type NotificationServer struct {
	Server *socketio.Server
}

// NewNotificationServer initializes and returns a new Socket.IO server
func NewNotificationServer() *NotificationServer {
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(c socketio.Conn) error {
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	server.OnEvent("/", "subscribe", func(c socketio.Conn) {
		log.Printf("👥 Client %s subscribed to group events\n", c.ID())
		c.Join(groupsRoom)
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		log.Println("Socket error:", err)
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return &NotificationServer{Server: server}
}

// Serve runs the Socket.IO event loop until Close
func (n *NotificationServer) Serve() error {
	return n.Server.Serve()
}

// Close shuts the Socket.IO server down
func (n *NotificationServer) Close() error {
	return n.Server.Close()
}

// OperationSucceeded broadcasts the single confirmation event for an operation
func (n *NotificationServer) OperationSucceeded(op models.Operation) {
	n.Server.BroadcastToRoom("/", groupsRoom, "operationSuccess", map[string]interface{}{
		"operationId": op.ID(),
		"groupId":     op.GroupID(),
		"message":     successMessage(op),
	})
}

// OperationFailed broadcasts the single failure event for an operation
func (n *NotificationServer) OperationFailed(op models.Operation, err error) {
	n.Server.BroadcastToRoom("/", groupsRoom, "operationFailed", map[string]interface{}{
		"operationId": op.ID(),
		"groupId":     op.GroupID(),
		"message":     fmt.Sprintf("Operation failed: %v", err),
		"shouldRetry": true,
	})
}

func successMessage(op models.Operation) string {
	switch op := op.(type) {
	case models.CreateGroup:
		return fmt.Sprintf("Group to %s created", op.OptimisticGroup.DestinationName)
	case models.JoinGroup:
		return "Joined group"
	case models.LeaveGroup:
		return "Left group"
	case models.UpdateGroup:
		return "Group updated"
	case models.DeleteGroup:
		return "Group deleted"
	default:
		return "Operation completed"
	}
}
