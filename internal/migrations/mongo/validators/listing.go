package validators

import "go.mongodb.org/mongo-driver/bson"

var ListingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"host_id",
			"title",
			"property_type",
			"location",
			"city",
			"country",
			"price_per_night",
			"max_guests",
			"available",
			"status",
			"created_at",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"host_id": objectIDString,
			"title": bson.M{
				"bsonType":  "string",
				"minLength": 5,
				"maxLength": 120,
			},
			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 5000,
			},
			"property_type": bson.M{
				"bsonType": "string",
				"enum":     []string{"apartment", "house", "villa", "cabin", "room", "other"},
			},
			"location": bson.M{"bsonType": "string"},
			"city":     bson.M{"bsonType": "string"},
			"country":  bson.M{"bsonType": "string"},
			"price_per_night": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  1000000000,
			},
			"max_guests": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  50,
			},
			"bedrooms":  bson.M{"bsonType": integer, "minimum": 0},
			"bathrooms": bson.M{"bsonType": integer, "minimum": 0},
			"amenities": bson.M{
				"bsonType": "array",
				"maxItems": 50,
				"items":    bson.M{"bsonType": "string"},
			},
			"images": bson.M{
				"bsonType": "array",
				"maxItems": 20,
				"items":    bson.M{"bsonType": "string"},
			},
			"available": bson.M{"bsonType": "bool"},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending_approval", "approved", "rejected"},
			},
			"rating": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
				"maximum":  5,
			},
			"reviews_count": bson.M{"bsonType": integer, "minimum": 0},
			"created_at":    bson.M{"bsonType": "date"},
			"updated_at":    bson.M{"bsonType": "date"},
		},
	},
}

var SavedListingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "listing_id", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "objectId"},
			"user_id":    objectIDString,
			"listing_id": objectIDString,
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
