//go:build !oto

package gogusplayer

import "fmt"

// OtoOutput stub for builds without speaker output
type OtoOutput struct{}

// NewOtoOutput returns an error; rebuild with '-tags oto' for speaker output
func NewOtoOutput(source SampleSource, sampleRate int) (*OtoOutput, error) {
	return nil, fmt.Errorf("oto support not enabled - rebuild with '-tags oto'")
}

// Start does nothing for the stub output
func (o *OtoOutput) Start() {}

// Close returns an error for the stub output
func (o *OtoOutput) Close() error {
	return fmt.Errorf("oto support not enabled")
}
