// Package session implements the Host API published by the emulation
// core: the narrow surface a shell (GUI, headless runner, test
// harness) drives to load a ROM, advance frames, and exchange
// framebuffers/audio/input/save-RAM with the running machine.
//
// Session wraps a bus.Bus. It owns no rendering, windowing, or audio
// device code - those are the shell's job (see internal/app,
// internal/graphics). A Session is a value type: every loaded ROM
// gets its own Bus, so independent sessions (useful for test
// harnesses running several ROMs concurrently) never alias state.
package session

import (
	"bytes"
	"fmt"

	"github.com/golang/glog"
	"github.com/nescore/nesemu/internal/bus"
	"github.com/nescore/nesemu/internal/cartridge"
	"github.com/nescore/nesemu/internal/input"
)

// Controller selects which of the two controller ports a button
// belongs to.
type Controller int

const (
	Controller1 Controller = 1
	Controller2 Controller = 2
)

// Button re-exports the controller package's button bits so callers
// of this package don't need to import internal/input directly.
type Button = input.Button

const (
	ButtonA      = input.ButtonA
	ButtonB      = input.ButtonB
	ButtonSelect = input.ButtonSelect
	ButtonStart  = input.ButtonStart
	ButtonUp     = input.ButtonUp
	ButtonDown   = input.ButtonDown
	ButtonLeft   = input.ButtonLeft
	ButtonRight  = input.ButtonRight
)

// FrameWidth and FrameHeight are the fixed dimensions of the
// palette-indexed framebuffer the core publishes every frame.
const (
	FrameWidth  = 256
	FrameHeight = 240

	// SampleRate is the fixed output rate of TakeAudioSamples.
	SampleRate = 44100

	// sramSize is the size of the battery-backed PRG-RAM window.
	sramSize = 0x2000
)

// Session is one loaded ROM and its running machine state: CPU, PPU,
// APU, mapper, and the bus that wires them together. Session is the
// Host API surface; it does not expose the bus or any subsystem
// directly so the shell can't bypass StepFrame's single-actor
// scheduling guarantee (see the core's concurrency model).
type Session struct {
	bus *bus.Bus
}

// LoadROM parses an iNES image (from a byte slice) and returns a
// freshly reset Session, or an error wrapping cartridge.ErrInvalidHeader,
// cartridge.ErrIO, or *cartridge.ErrUnsupportedMapper.
func LoadROM(data []byte) (*Session, error) {
	cart, err := cartridge.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("session: load ROM: %w", err)
	}
	return newSession(cart), nil
}

// LoadROMFile loads an iNES image from disk. See LoadROM for error kinds.
func LoadROMFile(path string) (*Session, error) {
	cart, err := cartridge.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: load ROM %q: %w", path, err)
	}
	return newSession(cart), nil
}

func newSession(cart *cartridge.Cartridge) *Session {
	glog.Infof("session: loaded cartridge, mapper=%d battery=%t", cart.MapperID(), cart.HasBattery())
	b := bus.New()
	b.LoadCartridge(cart)
	return &Session{bus: b}
}

// StepFrame advances the machine by exactly one NTSC frame (89,342
// PPU dots, or one dot fewer on an odd frame with rendering enabled).
// It is infallible: malformed in-session inputs (unknown opcodes, out
// of range bus accesses) are absorbed internally and never surface
// here.
func (s *Session) StepFrame() {
	s.bus.Run(1)
}

// Framebuffer returns the 256x240 frame the PPU just finished, one
// byte per pixel holding a 6-bit NES palette index (0-63). Stable
// between the end of StepFrame and the next call; the caller must
// copy it if it needs to survive past that point. Convert to RGB with
// the fixed 64-entry palette exposed by ppu.NESColorToRGB.
func (s *Session) Framebuffer() []uint8 {
	return s.bus.GetPaletteIndexFrameBuffer()
}

// TakeAudioSamples drains the APU's buffered mono 44.1kHz samples
// (normalized to roughly +/-1) and resets the internal buffer to
// empty. Call once per frame; samples not drained accumulate until
// the next call.
func (s *Session) TakeAudioSamples() []float32 {
	return s.bus.GetAudioSamples()
}

// SetButton updates one button's pressed state on one controller
// port. The change is latched by the controller's shift register and
// only visible to the running game on its next strobe.
func (s *Session) SetButton(controller Controller, button Button, pressed bool) {
	s.bus.SetControllerButton(int(controller), button, pressed)
}

// SRAM returns a copy of the cartridge's 8 KiB battery-backed PRG-RAM.
// Meaningful only when the loaded ROM declared the battery bit; for
// other cartridges it returns a zeroed buffer.
func (s *Session) SRAM() []byte {
	if data := s.bus.SRAM(); data != nil {
		return data
	}
	return make([]byte, sramSize)
}

// SetSRAM loads battery-backed PRG-RAM from a save file's contents. A
// buffer shorter than 8 KiB fills the prefix and leaves the rest
// untouched; a longer buffer is truncated to 8 KiB. Never fatal.
func (s *Session) SetSRAM(data []byte) {
	s.bus.SetSRAM(data)
}

// HasBattery reports whether the loaded ROM's header declared
// battery-backed RAM, i.e. whether a .sav file is meaningful for it.
func (s *Session) HasBattery() bool {
	return s.bus.HasBattery()
}

// Reset re-runs the CPU's RESET sequence. Memory (RAM, VRAM,
// battery-backed PRG-RAM) retains its contents; only CPU registers and
// the reset vector fetch are affected.
func (s *Session) Reset() {
	s.bus.Reset()
}
