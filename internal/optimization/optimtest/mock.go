package optimtest

import (
	"github.com/stretchr/testify/mock"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// MockStepper is a testify mock of optimization.Stepper.
type MockStepper struct {
	mock.Mock
}

var _ optimization.Stepper = (*MockStepper)(nil)

// NewMockStepper returns a mock whose descriptive methods (Name, Problem,
// Best, Progress, Forever) answer for the given problem. Tests set
// expectations for the calls they care about.
func NewMockStepper(p optimization.Problem) *MockStepper {
	m := &MockStepper{}
	m.On("Name").Return("mock " + p.Name).Maybe()
	m.On("Problem").Return(p).Maybe()
	m.On("Best").Return(optimization.Solution{}).Maybe()
	m.On("Progress").Return(optimization.Progress{}).Maybe()
	m.On("Forever").Return(false).Maybe()
	return m
}

func (m *MockStepper) Name() string {
	return m.Called().String(0)
}

func (m *MockStepper) Problem() optimization.Problem {
	return m.Called().Get(0).(optimization.Problem)
}

func (m *MockStepper) SolveStep() bool {
	return m.Called().Bool(0)
}

func (m *MockStepper) Run(steps int) []optimization.Evaluation {
	args := m.Called(steps)
	trace, _ := args.Get(0).([]optimization.Evaluation)
	return trace
}

func (m *MockStepper) Restart() {
	m.Called()
}

func (m *MockStepper) Best() optimization.Solution {
	return m.Called().Get(0).(optimization.Solution)
}

func (m *MockStepper) Progress() optimization.Progress {
	return m.Called().Get(0).(optimization.Progress)
}

func (m *MockStepper) Forever() bool {
	return m.Called().Bool(0)
}

func (m *MockStepper) SetForever(forever bool) {
	m.Called(forever)
}

func (m *MockStepper) Probe() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}
