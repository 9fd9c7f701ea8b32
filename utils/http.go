// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// AuthHTTPClient is shared by outbound calls to the auth server.
var AuthHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
