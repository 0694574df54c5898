package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWith(prometheus.NewRegistry())

	r.RecordSave("local", 10)
	r.RecordSave("local", 5)
	r.RecordLoad("global", 7)
	r.RecordError("save")
	r.RecordBytesWritten(2048)
	r.RecordBytesRead(1024)
	r.ObserveDuration("save", 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.savesTotal.WithLabelValues("local")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.candlesTotal.WithLabelValues("save")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.loadsTotal.WithLabelValues("global")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.candlesTotal.WithLabelValues("load")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("save")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(r.bytesTotal.WithLabelValues("write")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(r.bytesTotal.WithLabelValues("read")))
}
