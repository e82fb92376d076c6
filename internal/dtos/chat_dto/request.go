package chat_dto

import (
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type PostMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,min=1"`
	Kind       string `json:"kind" validate:"omitempty,oneof=TEXT SYSTEM"`
}

type ListMessagesRequest struct {
	Limit    int     `json:"limit" validate:"omitempty,min=1,max=100"`
	BeforeID *string `json:"before_id,omitempty" validate:"omitempty,objectID"` // cursor pagination
}

func ObjectIDValidator(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
