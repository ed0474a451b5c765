package dirminify

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMd5Sum(t *testing.T) {
	content := []byte("hello world")
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum(content)), Md5Sum(content))
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", Md5Sum(content))
}

func TestMd5Sum_Empty(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Md5Sum(nil))
	assert.Equal(t, Md5Sum(nil), Md5Sum([]byte{}))
}
