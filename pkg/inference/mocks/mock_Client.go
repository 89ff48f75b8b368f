// Package mocks provides test doubles for the inference client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	inference "github.com/sells-group/sentiment-cli/pkg/inference"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Health provides a mock function with given fields: ctx
func (_m *MockClient) Health(ctx context.Context) (*inference.HealthResponse, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Health")
	}

	var r0 *inference.HealthResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*inference.HealthResponse, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) *inference.HealthResponse); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*inference.HealthResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// LoadPipeline provides a mock function with given fields: ctx, req
func (_m *MockClient) LoadPipeline(ctx context.Context, req inference.LoadRequest) (*inference.LoadResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for LoadPipeline")
	}

	var r0 *inference.LoadResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, inference.LoadRequest) (*inference.LoadResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, inference.LoadRequest) *inference.LoadResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*inference.LoadResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, inference.LoadRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Predict provides a mock function with given fields: ctx, pipelineID, texts
func (_m *MockClient) Predict(ctx context.Context, pipelineID string, texts []string) (*inference.PredictResponse, error) {
	ret := _m.Called(ctx, pipelineID, texts)

	if len(ret) == 0 {
		panic("no return value specified for Predict")
	}

	var r0 *inference.PredictResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) (*inference.PredictResponse, error)); ok {
		return rf(ctx, pipelineID, texts)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) *inference.PredictResponse); ok {
		r0 = rf(ctx, pipelineID, texts)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*inference.PredictResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, []string) error); ok {
		r1 = rf(ctx, pipelineID, texts)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UnloadPipeline provides a mock function with given fields: ctx, pipelineID
func (_m *MockClient) UnloadPipeline(ctx context.Context, pipelineID string) error {
	ret := _m.Called(ctx, pipelineID)

	if len(ret) == 0 {
		panic("no return value specified for UnloadPipeline")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, pipelineID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
