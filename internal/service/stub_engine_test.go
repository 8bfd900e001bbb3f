package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/raphaelgruber/deepresearch-mcp/internal/engine"
)

// stubEngine is a scriptable engine. Operations are pending until completed
// or failed through the helpers.
type stubEngine struct {
	mu            sync.Mutex
	startErr      error
	retrieveErr   error
	next          int
	ops           map[string]*engine.Operation
	starts        []engine.StartRequest
	retrieveCalls int
}

func newStubEngine() *stubEngine {
	return &stubEngine{ops: make(map[string]*engine.Operation)}
}

func (s *stubEngine) Start(_ context.Context, req engine.StartRequest) (*engine.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.next++
	op := &engine.Operation{ID: fmt.Sprintf("op_%d", s.next), Status: "queued"}
	s.ops[op.ID] = op
	s.starts = append(s.starts, req)
	return op, nil
}

func (s *stubEngine) Retrieve(_ context.Context, ref string) (*engine.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieveCalls++
	if s.retrieveErr != nil {
		return nil, s.retrieveErr
	}
	op, ok := s.ops[ref]
	if !ok {
		return nil, &engine.APIError{StatusCode: 404, Body: "no such response"}
	}
	cp := *op
	return &cp, nil
}

func (s *stubEngine) complete(ref string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc["id"] = ref
	doc["status"] = "completed"
	s.ops[ref] = &engine.Operation{ID: ref, Status: "completed", Document: doc}
}

func (s *stubEngine) fail(ref string, status string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[ref] = &engine.Operation{ID: ref, Status: status, Document: doc}
}

func (s *stubEngine) setRetrieveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieveErr = err
}

func (s *stubEngine) retrieves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retrieveCalls
}

// pongDocument is a minimal completed engine document with one annotation.
func pongDocument() map[string]any {
	return map[string]any{
		"output": []any{
			map[string]any{
				"content": []any{
					map[string]any{
						"text": "pong",
						"annotations": []any{
							map[string]any{"title": "Src", "url": "http://x"},
						},
					},
				},
			},
		},
	}
}
