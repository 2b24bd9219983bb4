// Package mocks holds testify mocks of the model interfaces.
package mocks

import "github.com/stretchr/testify/mock"

// TestingT is what the New* constructors need from *testing.T.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

func NewDocumentStore(t TestingT) *DocumentStore {
	m := &DocumentStore{}
	register(&m.Mock, t)
	return m
}

func NewStorage(t TestingT) *Storage {
	m := &Storage{}
	register(&m.Mock, t)
	return m
}

func NewTokenManager(t TestingT) *TokenManager {
	m := &TokenManager{}
	register(&m.Mock, t)
	return m
}

func NewContextManager(t TestingT) *ContextManager {
	m := &ContextManager{}
	register(&m.Mock, t)
	return m
}

func NewSecurityLayer(t TestingT) *SecurityLayer {
	m := &SecurityLayer{}
	register(&m.Mock, t)
	return m
}
