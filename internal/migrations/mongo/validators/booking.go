package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"listing_id",
			"guest_id",
			"host_id",
			"check_in",
			"check_out",
			"guests",
			"nights",
			"total_price",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "objectId"},
			"listing_id": objectIDString,
			"guest_id":   objectIDString,
			"host_id":    objectIDString,
			"check_in":   bson.M{"bsonType": "date"},
			"check_out":  bson.M{"bsonType": "date"},
			"guests": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},
			"nights": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},
			"price": bson.M{
				"bsonType": "object",
				"required": []string{"nights", "nightly_rate", "base_price", "cleaning_fee", "service_fee", "total"},
			},
			"total_price": bson.M{
				"bsonType": integer,
				"minimum":  0,
			},
			"special_requests": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "confirmed", "checked_in", "checked_out", "cancelled"},
			},
			"payment_status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "paid", "refunded"},
			},
			"confirmed_by":   objectIDString,
			"confirmed_at":   bson.M{"bsonType": "date"},
			"checked_in_at":  bson.M{"bsonType": "date"},
			"checked_out_at": bson.M{"bsonType": "date"},
			"cancelled_by":   objectIDString,
			"cancelled_at":   bson.M{"bsonType": "date"},
			"created_at":     bson.M{"bsonType": "date"},
			"updated_at":     bson.M{"bsonType": "date"},
		},
	},
}

var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"listing_id", "owner", "expires_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"listing_id": bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
