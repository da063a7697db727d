package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// instrumentCache memoizes lazily created OpenTelemetry instruments by name
// so repeated IncCounter/RecordGauge/RecordTimer calls for the same metric
// name reuse a single instrument instead of re-registering it every call.
type instrumentCache[T any] struct {
	mu         sync.RWMutex
	instrument map[string]T
}

func newInstrumentCache[T any]() *instrumentCache[T] {
	return &instrumentCache[T]{instrument: make(map[string]T)}
}

func (c *instrumentCache[T]) getOrCreate(name string, create func() (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.instrument[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.instrument[name]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	c.instrument[name] = v
	return v, nil
}

// attributesFromTags converts a flat "key", "value", "key", "value" ... tag
// list into OpenTelemetry attributes. A trailing unpaired tag is dropped.
func attributesFromTags(tags []string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}
