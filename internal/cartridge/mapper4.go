// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper4 implements MMC3 (iNES mapper 4): eight bank-data slots R0-R7
// selected via a bank-select register, a switchable PRG-mode bit, a
// CHR-inversion bit, and a scanline-driven IRQ counter used by games
// like Super Mario Bros. 2/3 to split the status bar from the
// scrolling playfield. Clocked once per visible scanline by the PPU
// via ClockScanline (see PPU §4.2 "Mapper interaction").
type Mapper4 struct {
	cart     *Cartridge
	prgBanks uint8 // number of 8KB PRG banks
	chrBanks uint8 // number of 1KB CHR banks

	bankSelect uint8
	prgMode    uint8 // 0 or 1
	chrMode    uint8 // 0 or 1 (A12 inversion)
	registers  [8]uint8

	fourScreen bool // pre-declared by header; mirroring writes are ignored
	mirroring  MirrorMode

	prgRAMEnabled      bool
	prgRAMWriteProtect bool

	irqLatch      uint8
	irqCounter    uint8
	irqEnabled    bool
	irqPending    bool
	irqReloadFlag bool
}

// NewMapper4 creates a new MMC3 mapper.
func NewMapper4(cart *Cartridge) *Mapper4 {
	return &Mapper4{
		cart:          cart,
		prgBanks:      uint8(len(cart.prgROM) / 0x2000),
		chrBanks:      uint8(len(cart.chrROM) / 0x400),
		fourScreen:    cart.mirror == MirrorFourScreen,
		mirroring:     cart.mirror,
		prgRAMEnabled: true,
	}
}

// ReadPRG reads PRG-RAM or one of the four 8KB PRG windows.
func (m *Mapper4) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x6000 && address < 0x8000:
		if m.prgRAMEnabled {
			return m.cart.sram[address-0x6000]
		}
		return 0
	case address >= 0x8000 && address < 0xA000:
		bank := m.registers[6]
		if m.prgMode == 1 {
			bank = m.prgBanks - 2
		}
		return m.readPRGBank(bank, address-0x8000)
	case address >= 0xA000 && address < 0xC000:
		return m.readPRGBank(m.registers[7], address-0xA000)
	case address >= 0xC000 && address < 0xE000:
		bank := m.prgBanks - 2
		if m.prgMode == 1 {
			bank = m.registers[6]
		}
		return m.readPRGBank(bank, address-0xC000)
	default: // >= 0xE000
		return m.readPRGBank(m.prgBanks-1, address-0xE000)
	}
}

func (m *Mapper4) readPRGBank(bank uint8, offset uint16) uint8 {
	idx := uint32(bank)*0x2000 + uint32(offset)
	if int(idx) < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

// WritePRG routes a PRG-space write to PRG-RAM or one of the eight
// even/odd register pairs at 0x8000-0xFFFF.
func (m *Mapper4) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		if m.prgRAMEnabled && !m.prgRAMWriteProtect {
			m.cart.sram[address-0x6000] = value
		}
		return
	}
	if address < 0x8000 {
		return
	}

	even := address&1 == 0
	switch {
	case address < 0xA000:
		if even {
			m.bankSelect = value & 0x07
			m.prgMode = (value >> 6) & 0x01
			m.chrMode = (value >> 7) & 0x01
		} else {
			m.registers[m.bankSelect] = value
		}
	case address < 0xC000:
		if even {
			if !m.fourScreen {
				if value&1 == 0 {
					m.mirroring = MirrorVertical
				} else {
					m.mirroring = MirrorHorizontal
				}
			}
		} else {
			m.prgRAMWriteProtect = value&0x40 != 0
			m.prgRAMEnabled = value&0x80 != 0
		}
	case address < 0xE000:
		if even {
			m.irqLatch = value
		} else {
			m.irqCounter = 0
			m.irqReloadFlag = true
		}
	default:
		if even {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

// ReadCHR reads through the current CHR bank arrangement (2KB/2KB/1KB×4).
func (m *Mapper4) ReadCHR(address uint16) uint8 {
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

// WriteCHR writes to CHR-RAM when the cartridge has no CHR ROM.
func (m *Mapper4) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM {
		return
	}
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *Mapper4) chrOffset(address uint16) uint32 {
	if m.chrMode == 0 {
		switch {
		case address < 0x0800:
			return uint32(m.registers[0]&0xFE)*0x400 + uint32(address)
		case address < 0x1000:
			return uint32(m.registers[1]&0xFE)*0x400 + uint32(address-0x0800)
		case address < 0x1400:
			return uint32(m.registers[2])*0x400 + uint32(address-0x1000)
		case address < 0x1800:
			return uint32(m.registers[3])*0x400 + uint32(address-0x1400)
		case address < 0x1C00:
			return uint32(m.registers[4])*0x400 + uint32(address-0x1800)
		default:
			return uint32(m.registers[5])*0x400 + uint32(address-0x1C00)
		}
	}
	switch {
	case address < 0x0400:
		return uint32(m.registers[2])*0x400 + uint32(address)
	case address < 0x0800:
		return uint32(m.registers[3])*0x400 + uint32(address-0x0400)
	case address < 0x0C00:
		return uint32(m.registers[4])*0x400 + uint32(address-0x0800)
	case address < 0x1000:
		return uint32(m.registers[5])*0x400 + uint32(address-0x0C00)
	case address < 0x1800:
		return uint32(m.registers[0]&0xFE)*0x400 + uint32(address-0x1000)
	default:
		return uint32(m.registers[1]&0xFE)*0x400 + uint32(address-0x1800)
	}
}

// Mirroring reports the live mirroring mode (overridable via 0xA000
// unless FourScreen was pre-declared by the header).
func (m *Mapper4) Mirroring() MirrorMode {
	return m.mirroring
}

// ClockScanline implements the MMC3 IRQ counter: reload when zero or
// the reload flag is set, otherwise decrement; raise the pending flag
// when the counter reaches zero and IRQs are enabled.
func (m *Mapper4) ClockScanline() {
	if m.irqCounter == 0 || m.irqReloadFlag {
		m.irqCounter = m.irqLatch
		m.irqReloadFlag = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

// IRQPending reports whether the scanline counter has raised an IRQ.
func (m *Mapper4) IRQPending() bool {
	return m.irqPending
}

// AcknowledgeIRQ clears the pending IRQ flag (mirrors a CPU write to 0xE000).
func (m *Mapper4) AcknowledgeIRQ() {
	m.irqPending = false
}
