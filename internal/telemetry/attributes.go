// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by poll tick spans.
const (
	TickIDKey = "camsync.tick.id"

	DeviceIDKey       = "camsync.device.id"
	OperatingStateKey = "camsync.device.operating_state"

	CatalogRebuildKey = "camsync.catalog.rebuild"
	CatalogTriggerKey = "camsync.catalog.trigger"
	CatalogEntriesKey = "camsync.catalog.entries"

	SyncOutcomeKey = "camsync.sync.outcome"
	SyncBytesKey   = "camsync.sync.bytes"

	ErrorTypeKey = "error.type"
)

// TickAttributes describes a finished poll tick.
func TickAttributes(tickID, deviceID, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(TickIDKey, tickID),
		attribute.String(OperatingStateKey, state),
	}
	if deviceID != "" {
		attrs = append(attrs, attribute.String(DeviceIDKey, deviceID))
	}
	return attrs
}

// CatalogAttributes describes a catalog rebuild decision.
func CatalogAttributes(rebuilt bool, trigger string, entries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(CatalogRebuildKey, rebuilt),
		attribute.String(CatalogTriggerKey, trigger),
		attribute.Int(CatalogEntriesKey, entries),
	}
}

// SyncAttributes describes one sync attempt.
func SyncAttributes(outcome string, bytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SyncOutcomeKey, outcome),
		attribute.Int64(SyncBytesKey, bytes),
	}
}

// RecordError marks span as failed with stage as the error type.
func RecordError(span trace.Span, stage string, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(ErrorTypeKey, stage))
}
