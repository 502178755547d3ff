// Package mocks provides test doubles for the store package.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/ppi-cli/internal/model"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// EnsureSchema provides a mock function with given fields: ctx
func (_m *MockStore) EnsureSchema(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for EnsureSchema")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Load provides a mock function with given fields: ctx, records
func (_m *MockStore) Load(ctx context.Context, records []model.Record) (int64, error) {
	ret := _m.Called(ctx, records)

	if len(ret) == 0 {
		panic("no return value specified for Load")
	}

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []model.Record) (int64, error)); ok {
		return rf(ctx, records)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []model.Record) int64); ok {
		r0 = rf(ctx, records)
	} else {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, []model.Record) error); ok {
		r1 = rf(ctx, records)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadBack provides a mock function with given fields: ctx, metric, date
func (_m *MockStore) ReadBack(ctx context.Context, metric string, date time.Time) (*model.Record, error) {
	ret := _m.Called(ctx, metric, date)

	if len(ret) == 0 {
		panic("no return value specified for ReadBack")
	}

	var r0 *model.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) (*model.Record, error)); ok {
		return rf(ctx, metric, date)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) *model.Record); ok {
		r0 = rf(ctx, metric, date)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Time) error); ok {
		r1 = rf(ctx, metric, date)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Records provides a mock function with given fields: ctx
func (_m *MockStore) Records(ctx context.Context) ([]model.Record, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Records")
	}

	var r0 []model.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]model.Record, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []model.Record); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Rollup provides a mock function with given fields: ctx, metric
func (_m *MockStore) Rollup(ctx context.Context, metric string) ([]model.RollupRow, error) {
	ret := _m.Called(ctx, metric)

	if len(ret) == 0 {
		panic("no return value specified for Rollup")
	}

	var r0 []model.RollupRow
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.RollupRow, error)); ok {
		return rf(ctx, metric)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.RollupRow); ok {
		r0 = rf(ctx, metric)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.RollupRow)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, metric)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// StartRun provides a mock function with given fields: ctx
func (_m *MockStore) StartRun(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for StartRun")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (string, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) string); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CompleteRun provides a mock function with given fields: ctx, runID, rowsLoaded, metadata
func (_m *MockStore) CompleteRun(ctx context.Context, runID string, rowsLoaded int64, metadata map[string]any) error {
	ret := _m.Called(ctx, runID, rowsLoaded, metadata)

	if len(ret) == 0 {
		panic("no return value specified for CompleteRun")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int64, map[string]any) error); ok {
		r0 = rf(ctx, runID, rowsLoaded, metadata)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// FailRun provides a mock function with given fields: ctx, runID, errMsg
func (_m *MockStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	ret := _m.Called(ctx, runID, errMsg)

	if len(ret) == 0 {
		panic("no return value specified for FailRun")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, runID, errMsg)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// ListRuns provides a mock function with given fields: ctx, limit
func (_m *MockStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.RunEntry
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]model.RunEntry, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []model.RunEntry); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.RunEntry)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
