package validators

import "go.mongodb.org/mongo-driver/bson"

var TerminalValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"ip",
			"mode",
			"active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"ip": bson.M{
				"bsonType":  "string",
				"minLength": 7,
				"maxLength": 45,
			},

			"mac_address": bson.M{
				"bsonType": "string",
				"pattern":  "^[0-9a-f]{12}$",
			},

			"username": bson.M{
				"bsonType":  "string",
				"maxLength": 50,
			},

			"password": bson.M{
				"bsonType": "string",
			},

			"mode": bson.M{
				"bsonType": "string",
				"enum": []string{
					"entry",
					"exit",
					"both",
				},
			},

			"door_no": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  8,
			},

			"active": bson.M{
				"bsonType": "bool",
			},

			"reachable": bson.M{
				"bsonType": "bool",
			},

			"last_seen": bson.M{
				"bsonType": "date",
			},

			"last_error": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
