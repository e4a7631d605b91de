package utils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMarkerFormatter(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	log := NewLogger(&buf, "debug")

	log.Info("Building a list of hosts...")
	log.Warnf("Unknown host %q", "nope.invalid")
	log.Error("boom")
	log.WithFields(logrus.Fields{"ip": "192.0.2.1", "host": "a"}).Debug("lookup")

	assert.Equal("[+] Building a list of hosts...\n"+
		"[!] Unknown host \"nope.invalid\"\n"+
		"[!] boom\n"+
		"[*] lookup host=a ip=192.0.2.1\n", buf.String())
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, logrus.WarnLevel, NewLogger(&buf, "warn").Level)
	assert.Equal(t, logrus.InfoLevel, NewLogger(&buf, "nonsense").Level)

	log := NewLogger(&buf, "warn")
	log.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestMarkerFormatterColors(t *testing.T) {
	f := &MarkerFormatter{}
	out, err := f.Format(&logrus.Entry{Level: logrus.InfoLevel, Message: "hi", Data: logrus.Fields{}})
	assert.NoError(t, err)
	assert.Contains(t, string(out), "\x1b[")
	assert.Contains(t, string(out), "hi\n")
}
