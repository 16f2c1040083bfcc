package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompileTimeFormatDefaultPrecisionIsSix(t *testing.T) {
	tf := compileTimeFormat("%Y/%m/%d %H:%M:%S")
	assert.Equal(t, 6, tf.precision)
}

func TestCompileTimeFormatLastMarkerWins(t *testing.T) {
	tf := compileTimeFormat("%S.$3 $9")
	assert.Equal(t, 9, tf.precision)
}

func TestCompileTimeFormatPrecisionClamped(t *testing.T) {
	assert.Equal(t, 9, compileTimeFormat("%S.$9").precision)
	// $0 is not a valid marker digit (1-9), so it's left as a literal
	// and precision falls back to the unset default.
	assert.Equal(t, 6, compileTimeFormat("%S.$0").precision)
}

func TestTimeFormatRenderSubstitutesFraction(t *testing.T) {
	tf := compileTimeFormat("%H:%M:%S.$3")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC)
	assert.Equal(t, "03:04:05.123", tf.Render(ts))
}

func TestTimeFormatRenderWithoutMarkerOmitsFraction(t *testing.T) {
	tf := compileTimeFormat("%Y/%m/%d")
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024/01/02", tf.Render(ts))
}

func TestTimeFormatRenderPadsShortFraction(t *testing.T) {
	tf := compileTimeFormat("%S.$6")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 7000, time.UTC)
	assert.Equal(t, "05.000007", tf.Render(ts))
}
