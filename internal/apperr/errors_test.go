package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"feedsieve/internal/apperr"
)

func TestNewValidation(t *testing.T) {
	err := apperr.NewValidation("name is required")
	assert.Equal(t, "name is required", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestValidationErrorSurvivesWrapping(t *testing.T) {
	inner := errors.New("bad cron")
	err := fmt.Errorf("load config: %w", apperr.NewValidationWrap("schedule.poll", inner))

	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "schedule.poll: bad cron", ve.Error())
	assert.ErrorIs(t, err, inner)
}
