package validators

import "go.mongodb.org/mongo-driver/bson"

var AccessDecisionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"token",
			"decision",
			"reason",
			"observed_at",
			"decided_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"token": bson.M{
				"bsonType": "string",
			},

			"terminal_id": bson.M{
				"bsonType": "string",
			},

			"appointment_id": bson.M{
				"bsonType": "string",
			},

			"decision": bson.M{
				"bsonType": "string",
				"enum": []string{
					"allow",
					"deny",
				},
			},

			"reason": bson.M{
				"bsonType": "string",
				"enum": []string{
					"allowed",
					"unknown_token",
					"already_used",
					"out_of_window",
					"store_unavailable",
					"revoked",
					"malformed",
				},
			},

			"observed_at": bson.M{
				"bsonType": "date",
			},

			"decided_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
