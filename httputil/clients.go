package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Download *http.Client // photo downloads from vendor CDNs
}

func NewClients() *Clients {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Clients{
		Download: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}
