// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	args := m.Called()
	return args.Get(0).(config.EngineConfig)
}

func (m *MockConfig) Semantic() config.SemanticConfig {
	args := m.Called()
	return args.Get(0).(config.SemanticConfig)
}

func (m *MockConfig) Scan() config.ScanConfig {
	args := m.Called()
	return args.Get(0).(config.ScanConfig)
}

// --- Setters ---

func (m *MockConfig) SetScanConfig(sc config.ScanConfig) {
	m.Called(sc)
}

func (m *MockConfig) SetEngineWorkerConcurrency(w int) {
	m.Called(w)
}

func (m *MockConfig) SetEngineFileTimeout(d time.Duration) {
	m.Called(d)
}

func (m *MockConfig) SetSemanticRulesFiles(files []string) {
	m.Called(files)
}

func (m *MockConfig) SetSemanticTolerateSyntaxErrors(b bool) {
	m.Called(b)
}

// -- Detector Mock --

// MockDetector mocks schemas.Detector, standing in for the regex and
// heuristic detectors that run next to the semantic pass.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDetector) Detect(ctx context.Context, file schemas.SourceFile) ([]schemas.Finding, error) {
	args := m.Called(ctx, file)
	var findings []schemas.Finding
	if f := args.Get(0); f != nil {
		findings = f.([]schemas.Finding)
	}
	return findings, args.Error(1)
}

// -- Scanner Mock --

// MockScanner mocks schemas.Scanner for command tests.
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context, files []schemas.SourceFile) (*schemas.ScanReport, error) {
	args := m.Called(ctx, files)
	var report *schemas.ScanReport
	if r := args.Get(0); r != nil {
		report = r.(*schemas.ScanReport)
	}
	return report, args.Error(1)
}
