//go:build !jack
// +build !jack

package gogusplayer

import (
	"errors"
	"fmt"
)

// ErrJackDisabled is returned by every JACK call in builds without the jack tag.
var ErrJackDisabled = errors.New("built without JACK output")

// JackClient is the placeholder for the JACK backend. NewGusPlayer treats its
// error as "no live output" and keeps the offline and oto paths usable.
type JackClient struct{}

// NewJackClient always fails; rebuild with -tags jack to drive the mixer from
// a JACK process callback.
func NewJackClient(player *GusPlayer, clientName string) (*JackClient, error) {
	return nil, fmt.Errorf("failed to open JACK client %q: %w (rebuild with -tags jack)", clientName, ErrJackDisabled)
}

func (jc *JackClient) Start() error { return ErrJackDisabled }

func (jc *JackClient) Stop() error { return ErrJackDisabled }

func (jc *JackClient) Close() error { return ErrJackDisabled }
