// Package logs handles the node's log sinks: mirroring output into a file
// and scrubbing credentials from endpoint URLs before they are logged.
package logs

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/latticelabs/lattice/io/file"
	"github.com/sirupsen/logrus"
)

// ConfigurePersistentLogging mirrors everything written to stdout into the
// file at path. The file is appended to when it already exists, so
// restarts keep earlier runs.
func ConfigurePersistentLogging(path string) error {
	logrus.WithField("logFileName", path).Info("Logs will be made persistent")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, file.FilePerms) // #nosec G304
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(logrus.StandardLogger().Out, f))
	logrus.Info("File logging initialized")
	return nil
}

// MaskCredentialsLogging rewrites a URL for logging. Database and provider
// URLs carry secrets in the userinfo, path, query, and fragment, so those
// collapse to "***" while the scheme and host stay readable. Strings that
// do not parse as URLs are returned untouched.
func MaskCredentialsLogging(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	var masked strings.Builder
	if u.Scheme != "" {
		masked.WriteString(u.Scheme)
		masked.WriteString("://")
	}
	if u.User != nil {
		masked.WriteString("***@")
	}
	masked.WriteString(u.Host)
	if uri := u.RequestURI(); len(uri) > 1 {
		masked.WriteString("/***")
	} else {
		masked.WriteString(u.EscapedPath())
	}
	if u.Fragment != "" {
		masked.WriteString("#***")
	}
	return masked.String()
}
