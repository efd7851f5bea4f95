package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ixugo/goddd/pkg/reason"
	"github.com/stretchr/testify/assert"
)

func TestMatchesGodddReason(t *testing.T) {
	err := ErrNotFound.Withf("camera[%s] not found", "cam-1")
	assert.ErrorIs(t, err, reason.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))

	assert.ErrorIs(t, ErrForbidden, reason.ErrPermissionDenied)
	assert.False(t, errors.Is(ErrConflict, reason.ErrBadRequest))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrConflict.Withf("busy")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrBadGateway))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(reason.ErrRateLimit))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}
