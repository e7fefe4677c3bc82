package binx

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MetricsCollectorMock is a testify mock of MetricsCollector.
type MetricsCollectorMock struct {
	mock.Mock
}

func (m *MetricsCollectorMock) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

func (m *MetricsCollectorMock) IncrementCounterBy(name string, value int64, tags map[string]string) {
	m.Called(name, value, tags)
}

func (m *MetricsCollectorMock) SetGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

func (m *MetricsCollectorMock) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	m.Called(name, duration, tags)
}

func (m *MetricsCollectorMock) RecordValue(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

func (m *MetricsCollectorMock) Flush() error {
	args := m.Called()
	return args.Error(0)
}
