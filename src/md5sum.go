package dirminify

import (
	"crypto/md5"
	"fmt"
)

// Md5Sum returns the hex MD5 checksum of content.
func Md5Sum(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}
