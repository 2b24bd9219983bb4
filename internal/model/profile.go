package model

import "time"

// CollectionUsers holds profiles keyed by actor id.
const CollectionUsers = "users"

// Profile is the public profile of an actor.
type Profile struct {
	Key         string
	DisplayName string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	PhotoURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DecodeProfile converts a stored document into a Profile.
func DecodeProfile(doc Document) (Profile, error) {
	f := doc.Fields
	return Profile{
		Key:         doc.Key,
		DisplayName: f.String("displayName"),
		LastName:    f.String("lastName"),
		Email:       f.String("email"),
		PhoneNumber: f.String("phoneNumber"),
		Address:     f.String("address"),
		PhotoURL:    f.String("photoURL"),
		CreatedAt:   TimeField(f, FieldCreatedAt),
		UpdatedAt:   TimeField(f, FieldUpdatedAt),
	}, nil
}

// Fields returns the writable profile fields.
func (p Profile) Fields() Fields {
	return Fields{
		"displayName": p.DisplayName,
		"lastName":    p.LastName,
		"email":       p.Email,
		"phoneNumber": p.PhoneNumber,
		"address":     p.Address,
		"photoURL":    p.PhotoURL,
	}
}
