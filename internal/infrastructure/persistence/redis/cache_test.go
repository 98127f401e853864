package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(errors.New("NOAUTH Authentication required.")))
	assert.True(t, isAuthError(errors.New("WRONGPASS invalid username-password pair or user is disabled.")))
	assert.False(t, isAuthError(errors.New("LOADING Redis is loading the dataset in memory")))
	assert.False(t, isAuthError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
}
