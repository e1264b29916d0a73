package validators

import "go.mongodb.org/mongo-driver/bson"

var TerminalEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_type",
			"received_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"terminal_id": bson.M{
				"bsonType": "string",
			},

			"event_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"access_attempt",
					"heartbeat",
					"self_test",
					"unrecognized",
				},
			},

			"token": bson.M{
				"bsonType": "string",
			},

			"mac_address": bson.M{
				"bsonType": "string",
			},

			"device_ip": bson.M{
				"bsonType": "string",
			},

			"remote_addr": bson.M{
				"bsonType": "string",
			},

			"event_time": bson.M{
				"bsonType": "date",
			},

			"stale": bson.M{
				"bsonType": "bool",
			},

			"raw_payload": bson.M{
				"bsonType": "binData",
			},

			"received_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
