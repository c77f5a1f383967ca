package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Stage]bool{
		{StageIdle, StageEncoding}:                           true,
		{StageEncoding, StageExtractingObservations}:         true,
		{StageExtractingObservations, StageRequestingAdvice}: true,
		{StageRequestingAdvice, StageCondensingAdvice}:       true,
		{StageCondensingAdvice, StageDone}:                   true,
		{StageEncoding, StageFailed}:                         true,
		{StageExtractingObservations, StageFailed}:           true,
		{StageRequestingAdvice, StageFailed}:                 true,
		{StageCondensingAdvice, StageFailed}:                 true,
	}

	for from := StageIdle; from <= StageFailed; from++ {
		for to := StageIdle; to <= StageFailed; to++ {
			want := allowed[[2]Stage{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStageProperties(t *testing.T) {
	assert.False(t, StageIdle.Working())
	assert.False(t, StageIdle.Terminal())
	assert.True(t, StageRequestingAdvice.Working())
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.Equal(t, "condensing_advice", StageCondensingAdvice.String())
	assert.Equal(t, "unknown", Stage(42).String())
}

func TestClassificationErrorMatching(t *testing.T) {
	cause := errors.New("upstream 500")
	err := error(&ClassificationError{Kind: KindAdviceServiceFailed, Stage: StageRequestingAdvice, Err: cause})

	assert.ErrorIs(t, err, ErrAdviceServiceFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCondenseServiceFailed)
	assert.Equal(t, KindAdviceServiceFailed, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Contains(t, err.Error(), "stage=requesting_advice")
	assert.Contains(t, err.Error(), "upstream 500")
}
