package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewChromeClient_Options(t *testing.T) {
	t.Parallel()

	c := NewChromeClient(
		WithUserAgent("test-agent"),
		WithNavTimeout(5*time.Second),
		WithWaitTimeout(2*time.Second),
	)

	assert.Equal(t, "test-agent", c.userAgent)
	assert.Equal(t, 5*time.Second, c.navTimeout)
	assert.Equal(t, 2*time.Second, c.waitTimeout)
}

func TestNewChromeClient_IgnoresZeroValues(t *testing.T) {
	t.Parallel()

	c := NewChromeClient(WithUserAgent(""), WithNavTimeout(0), WithWaitTimeout(0))

	assert.Equal(t, defaultUserAgent, c.userAgent)
	assert.Equal(t, 30*time.Second, c.navTimeout)
	assert.Equal(t, 10*time.Second, c.waitTimeout)
}

func TestExtractionExpressions(t *testing.T) {
	t.Parallel()

	// Selectors with quotes must be escaped into valid JS string literals.
	sel := `[data-testid="event-title"]`

	assert.Contains(t, textExpr(sel), `\"event-title\"`)
	assert.Contains(t, textExpr(sel), "?? \"\"")
	assert.Contains(t, attrExpr(sel, "href"), `"href"`)
	assert.Contains(t, textsExpr(sel), "querySelectorAll")
	assert.Contains(t, attrsExpr(sel, "src"), `"src"`)
}
