package errors_test

import (
	"errors"
	"fmt"
	"testing"

	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEConstructor(t *testing.T) {
	got := alerterrs.E(
		"missing secrets",
		alerterrs.Detail{Field: "TELEGRAM_BOT_TOKEN", Error: "must be set"},
		alerterrs.KindConfig,
	)
	want := &alerterrs.Error{
		Err: errors.New("missing secrets"),
		Details: []alerterrs.Detail{
			{Field: "TELEGRAM_BOT_TOKEN", Error: "must be set"},
		},
		Kind: alerterrs.KindConfig,
	}

	assert.Equal(t, want, got)
	assert.Equal(t, "config: missing secrets; TELEGRAM_BOT_TOKEN: must be set", got.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("error fetching feed: %w", alerterrs.E(alerterrs.KindFetch, base))

	assert.True(t, alerterrs.IsKind(err, alerterrs.KindFetch))
	assert.False(t, alerterrs.IsKind(err, alerterrs.KindParse))
	assert.ErrorIs(t, err, base)

	var aerr *alerterrs.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, alerterrs.KindFetch, aerr.Kind)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, alerterrs.KindUnknown, alerterrs.KindOf(errors.New("plain")))
	assert.False(t, alerterrs.IsKind(nil, alerterrs.KindUnknown))
}
