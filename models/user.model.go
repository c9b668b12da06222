package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered GreenExchange member. Field names match the
// documents already present in the greenex_db users collection.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	Password     string               `bson:"password,omitempty" json:"-"`
	Trees        []primitive.ObjectID `bson:"trees" json:"trees"`               // planted, in planting order
	Certificates []primitive.ObjectID `bson:"certificates" json:"certificates"` // trees currently held as buyer
	IsAdmin      bool                 `bson:"isAdmin" json:"isAdmin"`
}

// HoldsCertificate reports whether treeID is in the user's certificates.
func (u *User) HoldsCertificate(treeID primitive.ObjectID) bool {
	for _, id := range u.Certificates {
		if id == treeID {
			return true
		}
	}
	return false
}
