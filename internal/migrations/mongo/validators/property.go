package validators

import "go.mongodb.org/mongo-driver/bson"

var PropertyValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner_id",
			"title",
			"rent",
			"available",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 5000,
			},

			"rent": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"location": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"bedrooms": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  100,
			},

			"images": bson.M{
				"bsonType": "array",
				"maxItems": 20,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"available": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
