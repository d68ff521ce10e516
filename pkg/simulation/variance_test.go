package simulation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniformVarianceRange(t *testing.T) {
	v := NewUniformVariance(1)
	for i := 0; i < 10000; i++ {
		f := v.Next()
		assert.GreaterOrEqual(t, f, MinVariance)
		assert.LessOrEqual(t, f, MaxVariance)
	}
}

func TestUniformVarianceSeeded(t *testing.T) {
	a := NewUniformVariance(99)
	b := NewUniformVariance(99)
	for i := 0; i < 100; i++ {
		assert.InDelta(t, a.Next(), b.Next(), 0)
	}
}

func TestUniformVarianceConcurrent(t *testing.T) {
	v := NewUniformVariance(5)
	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				v.Next()
			}
		}()
	}
	wg.Wait()
}

func TestSequenceVariance(t *testing.T) {
	v := SequenceVariance(0.9, 1.1)
	got := []float64{v.Next(), v.Next(), v.Next()}
	assert.Equal(t, []float64{0.9, 1.1, 0.9}, got)
	assert.InDelta(t, 1.0, SequenceVariance().Next(), 0)
}
