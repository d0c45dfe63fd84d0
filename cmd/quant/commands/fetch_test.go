package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hmoussa/egx-quant/internal/contracts"
)

func TestBarSpan(t *testing.T) {
	bars := []contracts.Bar{
		{Ticker: "INFI.CA", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Ticker: "INFI.CA", Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{Ticker: "INFI.CA", Date: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)},
	}

	first, last := barSpan(bars)
	assert.Equal(t, "2025-06-01", first)
	assert.Equal(t, "2025-06-05", last)

	first, last = barSpan(bars[:1])
	assert.Equal(t, "2025-06-01", first)
	assert.Equal(t, "2025-06-01", last)
}
