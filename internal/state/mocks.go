package state

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"
)

// MockStore мок для Store
type MockStore struct {
	ctrl     *gomock.Controller
	recorder *MockStoreMockRecorder
}

func NewMockStore(ctrl *gomock.Controller) *MockStore {
	mock := &MockStore{ctrl: ctrl}
	mock.recorder = &MockStoreMockRecorder{mock}
	return mock
}

func (m *MockStore) EXPECT() *MockStoreMockRecorder {
	return m.recorder
}

func (m *MockStore) Get(ctx context.Context, key string, def string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, key, def)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (m *MockStore) Set(ctx context.Context, key string, value string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Set", ctx, key, value)
	ret0, _ := ret[0].(error)
	return ret0
}

type MockStoreMockRecorder struct {
	mock *MockStore
}

func (mr *MockStoreMockRecorder) Get(ctx, key, def interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(
		mr.mock,
		"Get",
		reflect.TypeOf((*MockStore)(nil).Get),
		ctx, key, def,
	)
}

func (mr *MockStoreMockRecorder) Set(ctx, key, value interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(
		mr.mock,
		"Set",
		reflect.TypeOf((*MockStore)(nil).Set),
		ctx, key, value,
	)
}
