package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// DecodeFunc turns the envelope data of one event version into a typed value.
type DecodeFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds consumer-side decoders keyed by event type and version.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]DecodeFunc)}
}

// Decoders builds a v1 decoder for every registered event so consumers decode
// exactly what the publisher accepts.
func (r *EventRegistry) Decoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for eventType, desc := range r.entries {
		factory := desc.PayloadFactory
		reg.Register(eventType, 1, func(payload json.RawMessage) (any, error) {
			out := factory()
			if err := json.Unmarshal(payload, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	}
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder DecodeFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for eventType at version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}
