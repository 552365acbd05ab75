package app_test

import (
	"testing"

	"payflow_billing/internal/app"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "17,000 KRW", app.FormatAmount(17000, "KRW"))
	assert.Equal(t, "999 USD", app.FormatAmount(999, "USD"))
	assert.Equal(t, "1,234,567 KRW", app.FormatAmount(1234567, "KRW"))
}
