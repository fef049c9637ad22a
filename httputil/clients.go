package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Download *http.Client // long timeout, for multi-hundred-MB grid files
	API      *http.Client // short timeout, for HEAD probes and manifests
}

// NewClients builds the two HTTP clients used by the pipeline. The upstream
// CHELSA mirror serves single files of several hundred MB, so the download
// client gets a generous but explicit deadline rather than none at all.
func NewClients(downloadTimeout time.Duration) *Clients {
	transport := &http.Transport{
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	return &Clients{
		Download: &http.Client{
			Timeout:   downloadTimeout,
			Transport: transport,
		},
		API: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}
