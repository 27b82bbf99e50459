package kindred

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for engine events.
var (
	SignalMapperCreated  = capitan.NewSignal("kindred.mapper.created", "Mapper built and cached")
	SignalIntrospected   = capitan.NewSignal("kindred.metadata.introspected", "Class metadata built and cached")
	SignalChainResolved  = capitan.NewSignal("kindred.chain.resolved", "Listener chain built and cached")
	SignalEncodeComplete = capitan.NewSignal("kindred.encode.complete", "Encode operation finished")
	SignalDecodeComplete = capitan.NewSignal("kindred.decode.complete", "Decode operation finished")
	SignalEventFired     = capitan.NewSignal("kindred.event.fired", "Lifecycle event dispatched")
)

// Keys for typed event data.
var (
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeyMapper     = capitan.NewStringKey("mapper")
	KeyKind       = capitan.NewStringKey("kind")
	KeyEvent      = capitan.NewStringKey("event")
	KeyIntent     = capitan.NewStringKey("intent")
	KeyFieldCount = capitan.NewIntKey("field_count")
	KeyHookCount  = capitan.NewIntKey("hook_count")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitMapperCreated emits an event when a mapper is cached.
func emitMapperCreated(typeName, mapper string) {
	capitan.Emit(context.Background(), SignalMapperCreated,
		KeyTypeName.Field(typeName),
		KeyMapper.Field(mapper),
	)
}

// emitIntrospected emits an event when class metadata is cached.
func emitIntrospected(typeName, kind string, fields int) {
	capitan.Emit(context.Background(), SignalIntrospected,
		KeyTypeName.Field(typeName),
		KeyKind.Field(kind),
		KeyFieldCount.Field(fields),
	)
}

// emitChainResolved emits an event when a listener chain is cached.
func emitChainResolved(typeName, event string, hooks int) {
	capitan.Emit(context.Background(), SignalChainResolved,
		KeyTypeName.Field(typeName),
		KeyEvent.Field(event),
		KeyHookCount.Field(hooks),
	)
}

// emitEncodeComplete emits an event when encode finishes.
func emitEncodeComplete(ctx context.Context, typeName string, intent Intent, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyIntent.Field(intent.String()),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

// emitDecodeComplete emits an event when decode finishes.
func emitDecodeComplete(ctx context.Context, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}

// emitEventFired emits an event when a lifecycle chain has run.
func emitEventFired(ctx context.Context, typeName string, ev Event, hooks int, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyEvent.Field(ev.String()),
		KeyHookCount.Field(hooks),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEventFired, fields...)
	} else {
		capitan.Emit(ctx, SignalEventFired, fields...)
	}
}
