package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	t.Run("ClassOf", func(t *testing.T) {
		assert.Equal(t, ClassTransient, ClassOf(Transient(errors.New("timeout"))))
		assert.Equal(t, ClassNonRetryable, ClassOf(NonRetryable(errors.New("401"))))
		assert.Equal(t, ClassResource, ClassOf(Resource(errors.New("disk full"))))
		assert.Equal(t, ClassRender, ClassOf(Render(errors.New("bad container"))))
		assert.Equal(t, ClassUpload, ClassOf(Upload(errors.New("quota"))))
	})

	t.Run("UnclassifiedDefaultsToNonRetryable", func(t *testing.T) {
		assert.Equal(t, ClassNonRetryable, ClassOf(errors.New("mystery")))
		assert.False(t, IsTransient(errors.New("mystery")))
	})

	t.Run("ClassSurvivesWrapping", func(t *testing.T) {
		err := fmt.Errorf("stage quote: %w", Transient(errors.New("timeout")))
		assert.True(t, IsTransient(err))
		assert.Equal(t, 1, AttemptsOf(err))
	})

	t.Run("SentinelThroughTaxonomy", func(t *testing.T) {
		err := Resource(fmt.Errorf("%w in /tmp/empty", ErrNoAudioAvailable))
		assert.True(t, errors.Is(err, ErrNoAudioAvailable))
		assert.Equal(t, ClassResource, ClassOf(err))
	})

	t.Run("ErrorStringIncludesAttempts", func(t *testing.T) {
		pe := &PipelineError{Class: ClassTransient, Attempts: 3, Err: errors.New("timeout")}
		assert.Contains(t, pe.Error(), "3 attempts")
	})
}
