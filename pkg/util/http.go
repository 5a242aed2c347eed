/*
Copyright 2021 The KEDA Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
)

var disableKeepAlives bool
var minTLSVersion uint16
var rootCAs *x509.CertPool

func init() {
	disableKeepAlives = getKeepAliveValue()
	rootCAs, _ = x509.SystemCertPool()
	minTLSVersion = initMinTLSVersion(logr.Discard())
}

func initMinTLSVersion(logger logr.Logger) uint16 {
	version, found := os.LookupEnv("QUETTY_HTTP_MIN_TLS_VERSION")
	minVersion := tls.VersionTLS12
	if found {
		switch version {
		case "TLS13":
			minVersion = tls.VersionTLS13
		case "TLS12":
			minVersion = tls.VersionTLS12
		case "TLS11":
			minVersion = tls.VersionTLS11
		case "TLS10":
			minVersion = tls.VersionTLS10
		default:
			logger.Info(fmt.Sprintf("%s is not a valid value, using `TLS12`. Allowed values are: `TLS13`,`TLS12`,`TLS11`,`TLS10`", version))
			minVersion = tls.VersionTLS12
		}
	}
	return uint16(minVersion)
}

func getKeepAliveValue() bool {
	if val, err := ResolveOsEnvBool("QUETTY_HTTP_DISABLE_KEEP_ALIVE", false); err == nil {
		return val
	}
	return false
}

// HTTPDoer is an interface that matches the Do method on
// (net/http).Client. It should be used in function signatures
// instead of raw *http.Clients wherever possible
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// CreateHTTPClient returns a new HTTP client with the timeout set to
// timeout, or 300 milliseconds if timeout <= 0.
// unsafeSsl parameter allows to avoid tls cert validation if it's required
func CreateHTTPClient(timeout time.Duration, unsafeSsl bool) *http.Client {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: unsafeSsl,
			MinVersion:         GetMinTLSVersion(),
			RootCAs:            rootCAs,
		},
		Proxy: http.ProxyFromEnvironment,
	}
	if disableKeepAlives {
		transport.DisableKeepAlives = true
		transport.IdleConnTimeout = 100 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GetMinTLSVersion returns the minimum TLS version HTTP clients created by this
// package are configured to accept.
func GetMinTLSVersion() uint16 {
	return minTLSVersion
}
