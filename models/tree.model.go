package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TreeStatus is the lifecycle state of a listed tree.
type TreeStatus string

const (
	StatusPending  TreeStatus = "Pending"
	StatusVerified TreeStatus = "Verified"
	StatusSold     TreeStatus = "Sold"
)

// Statuses lists every lifecycle state in lifecycle order.
var Statuses = []TreeStatus{StatusPending, StatusVerified, StatusSold}

// Tree represents a marketplace listing for a planted tree.
type Tree struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Adhar     int64               `bson:"Adhar" json:"adhar"`
	State     string              `bson:"State" json:"state"`
	Distric   string              `bson:"Distric" json:"distric"`
	PinCode   string              `bson:"PinCode" json:"pinCode"`
	Image     string              `bson:"image" json:"image"`
	Price     float64             `bson:"price" json:"price"`
	Status    TreeStatus          `bson:"status" json:"status"`
	Owner     *primitive.ObjectID `bson:"owner" json:"owner"`
	PlantedBy primitive.ObjectID  `bson:"plantedBy" json:"plantedBy"`
}

// StatusChange describes a conditional status update: it only applies when
// the stored status equals From.
type StatusChange struct {
	From       TreeStatus
	To         TreeStatus
	ClearOwner bool
}

// Label names the transition for logs and metrics, e.g. "Verified->Sold".
func (c StatusChange) Label() string {
	return string(c.From) + "->" + string(c.To)
}
