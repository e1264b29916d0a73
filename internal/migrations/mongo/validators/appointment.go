package validators

import "go.mongodb.org/mongo-driver/bson"

var AppointmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"patient_id",
			"qr_token",
			"valid_from",
			"valid_until",
			"consumed",
			"revoked",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"patient_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"qr_token": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z0-9]{12}$",
			},

			"valid_from": bson.M{
				"bsonType": "date",
			},

			"valid_until": bson.M{
				"bsonType": "date",
			},

			"consumed": bson.M{
				"bsonType": "bool",
			},

			"consumed_at": bson.M{
				"bsonType": "date",
			},

			"consumed_by": bson.M{
				"bsonType": "string",
			},

			"revoked": bson.M{
				"bsonType": "bool",
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
