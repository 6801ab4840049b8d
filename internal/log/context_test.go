// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithTickID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "nil context", ctx: nil, id: "tick-1"},
		{name: "background context", ctx: context.Background(), id: "tick-2"},
		{name: "empty id", ctx: context.Background(), id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithTickID(tt.ctx, tt.id) //nolint:staticcheck // nil ctx is part of the contract
			assert.Equal(t, tt.id, TickIDFromContext(ctx))
		})
	}
}

func TestWithContext_NilContext(t *testing.T) {
	var buf bytes.Buffer
	l := WithContext(nil, zerolog.New(&buf)) //nolint:staticcheck // nil ctx is part of the contract
	l.Info().Msg("plain")
	assert.NotContains(t, buf.String(), FieldRequestID)
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTickID(ctx, "tick-9")

	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "tick-9", entry[FieldTickID])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasTick := entry[FieldTickID]
	assert.False(t, hasTick)
}
