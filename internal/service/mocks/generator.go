package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"council-server/pkg/ai"
)

// MockGenerator is a mock type for the Generator type
type MockGenerator struct {
	mock.Mock
}

// GenerateScenario provides a mock function with given fields: ctx, gameCtx
func (_m *MockGenerator) GenerateScenario(ctx context.Context, gameCtx ai.GameContext) (*ai.ScenarioResult, error) {
	ret := _m.Called(ctx, gameCtx)

	var r0 *ai.ScenarioResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*ai.ScenarioResult)
	}
	return r0, ret.Error(1)
}

// GenerateOptions provides a mock function with given fields: ctx, title, description
func (_m *MockGenerator) GenerateOptions(ctx context.Context, title string, description string) ([]string, error) {
	ret := _m.Called(ctx, title, description)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// GenerateOutcome provides a mock function with given fields: ctx, req
func (_m *MockGenerator) GenerateOutcome(ctx context.Context, req ai.OutcomeRequest) (*ai.OutcomeResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *ai.OutcomeResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*ai.OutcomeResult)
	}
	return r0, ret.Error(1)
}

// GenerateIncentive provides a mock function with given fields: ctx, req
func (_m *MockGenerator) GenerateIncentive(ctx context.Context, req ai.IncentiveRequest) (*ai.IncentiveResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *ai.IncentiveResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*ai.IncentiveResult)
	}
	return r0, ret.Error(1)
}

// NewMockGenerator creates a new instance of MockGenerator and registers
// the testing interface on the mock.
func NewMockGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
