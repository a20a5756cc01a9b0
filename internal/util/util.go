package util

import (
	"github.com/lithammer/shortuuid/v4"
)

// GenUUID generates a short, URL-safe unique identifier.
func GenUUID() string {
	return shortuuid.New()
}
