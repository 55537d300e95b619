package wire

import (
	"encoding/json"
	"fmt"
)

// ItemPoint is one named location in an items_update broadcast.
type ItemPoint struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// ItemsUpdate is the broadcast payload on the items topic. Receivers
// replace their whole item set with Items; no diffing is performed.
type ItemsUpdate struct {
	Type  string      `json:"type"`
	Items []ItemPoint `json:"items"`
}

const itemsUpdateType = "items_update"

// EncodeItemsUpdate marshals an items_update payload.
func EncodeItemsUpdate(items []ItemPoint) ([]byte, error) {
	if items == nil {
		items = []ItemPoint{}
	}
	return json.Marshal(ItemsUpdate{Type: itemsUpdateType, Items: items})
}

// DecodeItemsUpdate unmarshals and type-checks an items_update payload.
func DecodeItemsUpdate(payload []byte) ([]ItemPoint, error) {
	var upd ItemsUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return nil, fmt.Errorf("decode items_update: %w", err)
	}
	if upd.Type != itemsUpdateType {
		return nil, fmt.Errorf("decode items_update: unexpected type %q", upd.Type)
	}
	return upd.Items, nil
}

// PinnedBroadcast is the payload on the pinned-items topic, sent to every
// kiosk when any client pins an item. Location is a [x, y] pair.
type PinnedBroadcast struct {
	Type      string     `json:"type"`
	ItemName  string     `json:"item_name"`
	Barcode   string     `json:"barcode"`
	Location  [2]float64 `json:"location"`
	Timestamp int64      `json:"timestamp"`
}

const pinnedBroadcastType = "item_pinned"

// EncodePinnedBroadcast marshals an item_pinned payload.
func EncodePinnedBroadcast(name, barcode string, x, y float64, ts int64) ([]byte, error) {
	return json.Marshal(PinnedBroadcast{
		Type:      pinnedBroadcastType,
		ItemName:  name,
		Barcode:   barcode,
		Location:  [2]float64{x, y},
		Timestamp: ts,
	})
}

// DecodePinnedBroadcast unmarshals and type-checks an item_pinned payload.
func DecodePinnedBroadcast(payload []byte) (PinnedBroadcast, error) {
	var pb PinnedBroadcast
	if err := json.Unmarshal(payload, &pb); err != nil {
		return PinnedBroadcast{}, fmt.Errorf("decode item_pinned: %w", err)
	}
	if pb.Type != pinnedBroadcastType {
		return PinnedBroadcast{}, fmt.Errorf("decode item_pinned: unexpected type %q", pb.Type)
	}
	return pb, nil
}
