package component

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name     string
	initErr  error
	startErr error
	healthy  bool

	log *[]string
}

func (f *fakeComponent) Initialize() error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeComponent) Start(ctx context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	if f.startErr == nil {
		f.healthy = true
	}
	return f.startErr
}

func (f *fakeComponent) Stop(timeout time.Duration) error {
	*f.log = append(*f.log, "stop:"+f.name)
	f.healthy = false
	return nil
}

func (f *fakeComponent) Meta() Metadata {
	return Metadata{Name: f.name, Type: "processor"}
}

func (f *fakeComponent) Health() HealthStatus {
	return HealthStatus{Healthy: f.healthy}
}

func TestRunnerStartStopOrder(t *testing.T) {
	var log []string
	a := &fakeComponent{name: "a", log: &log}
	b := &fakeComponent{name: "b", log: &log}

	r := NewRunner(nil)
	r.Add(a)
	r.Add(b)

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Healthy())

	r.Stop(time.Second)
	assert.Equal(t, []string{
		"init:a", "start:a",
		"init:b", "start:b",
		"stop:b", "stop:a",
	}, log)
	assert.False(t, r.Healthy())
}

func TestRunnerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	a := &fakeComponent{name: "a", log: &log}
	b := &fakeComponent{name: "b", log: &log, startErr: fmt.Errorf("boom")}

	r := NewRunner(nil)
	r.Add(a)
	r.Add(b)

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")

	// The already started component is stopped during rollback.
	assert.Contains(t, log, "stop:a")
	assert.NotContains(t, log, "stop:b")
}

func TestRunnerInitializeFailure(t *testing.T) {
	var log []string
	a := &fakeComponent{name: "a", log: &log, initErr: fmt.Errorf("bad config")}

	r := NewRunner(nil)
	r.Add(a)

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize a")
}

func TestDependenciesGetLoggerFallback(t *testing.T) {
	var d Dependencies
	assert.NotNil(t, d.GetLogger())
}
