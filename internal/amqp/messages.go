package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operations carried by a CollectionSyncMessage.
const (
	OpSync   = "sync"
	OpDelete = "delete"
)

// CollectionSyncMessage tells the ledger worker that a fund collection was
// written. Sync messages carry only the id; the worker reads the current row.
// Delete messages also carry the receipt number because the row is gone.
type CollectionSyncMessage struct {
	ID            int64     `json:"id"`
	Operation     string    `json:"operation"`
	ReceiptNumber string    `json:"receiptNumber,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewCollectionSyncMessage(id int64) *CollectionSyncMessage {
	return &CollectionSyncMessage{ID: id, Operation: OpSync, Timestamp: time.Now().UTC()}
}

func NewCollectionDeleteMessage(id int64, receiptNumber string) *CollectionSyncMessage {
	return &CollectionSyncMessage{ID: id, Operation: OpDelete, ReceiptNumber: receiptNumber, Timestamp: time.Now().UTC()}
}

func (m *CollectionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CollectionSyncMessageFromJSON decodes and checks a message body.
func CollectionSyncMessageFromJSON(data []byte) (*CollectionSyncMessage, error) {
	var msg CollectionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Operation {
	case OpSync:
	case OpDelete:
		if msg.ReceiptNumber == "" {
			return nil, fmt.Errorf("delete message %d without receipt number", msg.ID)
		}
	default:
		return nil, fmt.Errorf("unknown operation %q", msg.Operation)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid collection id %d", msg.ID)
	}
	return &msg, nil
}
