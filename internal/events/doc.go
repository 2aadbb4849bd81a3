// Package events publishes caption events to Kafka for downstream consumers
// such as archival and analytics pipelines. Partial and final captions go to
// separate topics. When no brokers are configured the publisher runs in
// log-only mode so the session path never needs a nil check.
package events
