package validators

import "go.mongodb.org/mongo-driver/bson"

var ConversationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"participants", "last_message_at", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string"},
			"participants": bson.M{
				"bsonType": "array",
				"minItems": 2,
				"maxItems": 2,
				"items":    objectIDString,
			},
			"last_message":    bson.M{"bsonType": "string"},
			"last_message_at": bson.M{"bsonType": "date"},
			"created_at":      bson.M{"bsonType": "date"},
		},
	},
}

var MessageValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"conversation_id", "sender_id", "receiver_id", "content", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":             bson.M{"bsonType": "objectId"},
			"conversation_id": bson.M{"bsonType": "string"},
			"sender_id":       objectIDString,
			"receiver_id":     objectIDString,
			"content": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 2000,
			},
			"created_at": bson.M{"bsonType": "date"},
			"read_at":    bson.M{"bsonType": []string{"date", "null"}},
		},
	},
}
