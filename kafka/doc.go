// Package kafka publishes messages to Kafka with segmentio/kafka-go.
//
// Config carries the connection, TLS, SASL and batching settings in the
// camelCase keys used by pipeline component configurations:
//
//	{"brokers": ["localhost:9092"], "topic": "segments", "compression": "snappy"}
package kafka
