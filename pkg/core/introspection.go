package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	EventBufferSize int         `json:"event_buffer_size"`
	DatabaseType    string      `json:"database_type"`
	Adapter         AdapterType `json:"adapter"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dbType := "unknown"
	var adapter AdapterType
	if s.db != nil {
		dbType = "database"
		// Try to get component type if the database implements introspection.Component
		if comp, ok := s.db.(introspection.Component); ok {
			dbType = comp.ComponentType()
		}
		adapter = s.db.Info().Adapter
	}

	return ServiceState{
		EventBufferSize: s.eventBufferSize,
		DatabaseType:    dbType,
		Adapter:         adapter,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
