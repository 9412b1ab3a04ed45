package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	coremetrics "github.com/homegrid/battsitter/core/metrics"
)

type countSink struct {
	cycles int
	acts   int
	err    error
}

func (c *countSink) RecordCycle(coremetrics.CycleResult) error {
	c.cycles++
	return c.err
}

func (c *countSink) RecordActuation(coremetrics.ActuationResult) error {
	c.acts++
	return c.err
}

func TestMultiSinkFanout(t *testing.T) {
	a, b := &countSink{}, &countSink{}
	m := NewMultiSink(a, b)

	assert.NoError(t, m.RecordCycle(coremetrics.CycleResult{}))
	assert.NoError(t, m.RecordActuation(coremetrics.ActuationResult{}))
	assert.Equal(t, 1, a.cycles)
	assert.Equal(t, 1, b.cycles)
	assert.Equal(t, 1, a.acts)
	assert.Equal(t, 1, b.acts)
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countSink{err: boom}, &countSink{}
	m := NewMultiSink(a, b)

	assert.ErrorIs(t, m.RecordCycle(coremetrics.CycleResult{}), boom)
	assert.Zero(t, b.cycles, "second sink must not be reached after an error")
}

func TestNopSink(t *testing.T) {
	var s coremetrics.NopSink
	assert.NoError(t, s.RecordCycle(coremetrics.CycleResult{}))
	assert.NoError(t, s.RecordActuation(coremetrics.ActuationResult{}))
}
