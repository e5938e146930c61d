/*
Logger setup: logrus with a prefixed text formatter.
*/
package logging

import (
	"io"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// New returns a logger writing to out (stdout if nil) at level.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	logger.Out = out
	logger.Formatter = &prefixed.TextFormatter{FullTimestamp: true}
	if level == "" {
		level = "info"
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.Level = l
	return logger, nil
}

var secrets = regexp.MustCompile(`((?:password|client_secret|access_token)=)[^&\s]*`)

// Redact hides credentials carried in URLs and form bodies.
func Redact(s string) string {
	return secrets.ReplaceAllString(s, "${1}xxx")
}
