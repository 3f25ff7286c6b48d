package pub

const (
	blockEventSchema = `
		{
			"type": "record",
			"name": "BlockEvent",
			"namespace": "org.cairnchain.node.model.avro",
			"fields": [
				{ "name": "height", "type": "long" },
				{ "name": "hash", "type": "string" },
				{ "name": "time", "type": "long" },
				{ "name": "source", "type": "string" }
			]
		}
	`

	peerEventSchema = `
		{
			"type": "record",
			"name": "PeerEvent",
			"namespace": "org.cairnchain.node.model.avro",
			"fields": [
				{ "name": "kind", "type": "string" },
				{ "name": "endpoint", "type": "string" },
				{ "name": "peerId", "type": "long" },
				{ "name": "time", "type": "long" }
			]
		}
	`
)
