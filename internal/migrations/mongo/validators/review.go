package validators

import "go.mongodb.org/mongo-driver/bson"

var ReviewValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"booking_id", "listing_id", "guest_id", "rating", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "objectId"},
			"booking_id": objectIDString,
			"listing_id": objectIDString,
			"guest_id":   objectIDString,
			"rating": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  5,
			},
			"comment": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
