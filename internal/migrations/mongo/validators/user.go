package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"full_name", "email", "password_hash", "role", "verified", "joined_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"full_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},
			"password_hash": bson.M{"bsonType": "string"},
			"phone":         bson.M{"bsonType": "string"},
			"bio": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"guest", "host", "admin"},
			},
			"profile_photo": bson.M{"bsonType": "string"},
			"verified":      bson.M{"bsonType": "bool"},
			"nid": bson.M{
				"bsonType": "object",
				"required": []string{"status", "submitted_at"},
				"properties": bson.M{
					"status": bson.M{
						"bsonType": "string",
						"enum":     []string{"pending", "approved", "rejected"},
					},
					"document_url": bson.M{"bsonType": "string"},
					"submitted_at": bson.M{"bsonType": "date"},
				},
			},
			"joined_at":  bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}

var EmailVerificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "email", "code", "used", "expires_at", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"user_id": objectIDString,
			"email":   bson.M{"bsonType": "string"},
			"code": bson.M{
				"bsonType":  "string",
				"minLength": 6,
				"maxLength": 6,
			},
			"used":       bson.M{"bsonType": "bool"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}

// objectIDString is a reference to another document stored as its hex id.
var objectIDString = bson.M{
	"bsonType":  "string",
	"minLength": 24,
	"maxLength": 24,
}

// integer accepts both widths; the driver writes small Go ints as int32.
var integer = []string{"int", "long"}
