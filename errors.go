package bot

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidStartTime = errors.New("invalid start time")
	ErrInvalidLane      = errors.New("invalid lane")
	ErrLogin            = errors.New("login failed")
	ErrNoSlot           = errors.New("no matching slot")
	ErrCheckout         = errors.New("checkout failed")
)

func statusError(res *http.Response) error {
	return fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status)
}
