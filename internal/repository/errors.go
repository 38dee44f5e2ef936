package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a record does not exist or belongs to another user
var ErrNotFound = errors.New("record not found")

func newID() string {
	return primitive.NewObjectID().Hex()
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
