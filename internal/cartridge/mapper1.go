// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper1 implements MMC1 (iNES mapper 1): a 5-bit serial shift
// register accumulates one bit per PRG-space write; the fifth write
// commits the accumulated value to one of four internal registers
// selected by the address's high bits. Used by Zelda, Metroid, Mega
// Man 2, Kid Icarus and roughly a quarter of all licensed carts.
type Mapper1 struct {
	cart *Cartridge

	prgBanks uint8 // number of 16KB PRG banks
	chrBanks uint8 // number of 4KB CHR banks

	shiftRegister uint8
	shiftCount    uint8

	mirroring uint8 // 0=one-screen-lower 1=one-screen-upper 2=vertical 3=horizontal
	prgMode   uint8 // 0/1=32KB switch, 2=fix first, 3=fix last
	chrMode   uint8 // 0=8KB mode, 1=4KB mode

	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgRAMEnabled bool
}

// NewMapper1 creates a new MMC1 mapper.
func NewMapper1(cart *Cartridge) *Mapper1 {
	// Until the first control write, report the header's mirroring
	// in the control register's encoding.
	mirroring := uint8(3)
	if cart.mirror == MirrorVertical {
		mirroring = 2
	}
	return &Mapper1{
		cart:          cart,
		prgBanks:      uint8(len(cart.prgROM) / 0x4000),
		chrBanks:      uint8(len(cart.chrROM) / 0x1000),
		shiftRegister: 0x10,
		prgMode:       3,
		mirroring:     mirroring,
		prgRAMEnabled: true,
	}
}

// ReadPRG reads from PRG-RAM or a banked PRG-ROM window.
func (m *Mapper1) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x6000 && address < 0x8000:
		if m.prgRAMEnabled {
			return m.cart.sram[address-0x6000]
		}
		return 0
	case address >= 0x8000 && address < 0xC000:
		var bank uint8
		switch m.prgMode {
		case 0, 1:
			bank = m.prgBank & 0xFE
		case 2:
			bank = 0
		default:
			bank = m.prgBank
		}
		return m.readPRGBank(bank, address-0x8000)
	default: // >= 0xC000
		var bank uint8
		switch m.prgMode {
		case 0, 1:
			bank = (m.prgBank & 0xFE) | 1
		case 2:
			bank = m.prgBank
		default:
			bank = m.prgBanks - 1
		}
		return m.readPRGBank(bank, address-0xC000)
	}
}

func (m *Mapper1) readPRGBank(bank uint8, offset uint16) uint8 {
	idx := uint32(bank)*0x4000 + uint32(offset)
	if int(idx) < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

// WritePRG feeds the serial shift register, or writes PRG-RAM.
func (m *Mapper1) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		if m.prgRAMEnabled {
			m.cart.sram[address-0x6000] = value
		}
		return
	}
	if address < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shiftRegister = 0x10
		m.shiftCount = 0
		m.prgMode = 3
		return
	}

	m.shiftRegister = (m.shiftRegister >> 1) | ((value & 1) << 4)
	m.shiftCount++
	if m.shiftCount < 5 {
		return
	}

	committed := m.shiftRegister
	m.shiftRegister = 0x10
	m.shiftCount = 0

	switch {
	case address < 0xA000:
		m.mirroring = committed & 0x03
		m.prgMode = (committed >> 2) & 0x03
		m.chrMode = (committed >> 4) & 0x01
	case address < 0xC000:
		m.chrBank0 = committed & 0x1F
	case address < 0xE000:
		m.chrBank1 = committed & 0x1F
	default:
		m.prgBank = committed & 0x0F
		m.prgRAMEnabled = committed&0x10 == 0
	}
}

// ReadCHR reads from CHR ROM/RAM through the current bank mapping.
func (m *Mapper1) ReadCHR(address uint16) uint8 {
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

// WriteCHR writes to CHR RAM (ignored when the cartridge has CHR ROM).
func (m *Mapper1) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM {
		return
	}
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *Mapper1) chrOffset(address uint16) uint32 {
	if m.chrMode == 0 {
		bank := m.chrBank0 & 0xFE
		if address >= 0x1000 {
			bank |= 1
		}
		return uint32(bank)*0x1000 + uint32(address&0x0FFF)
	}
	if address < 0x1000 {
		return uint32(m.chrBank0)*0x1000 + uint32(address)
	}
	return uint32(m.chrBank1)*0x1000 + uint32(address-0x1000)
}

// Mirroring reports the mode selected by the control register.
func (m *Mapper1) Mirroring() MirrorMode {
	switch m.mirroring {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

// ClockScanline is a no-op: MMC1 has no IRQ hardware.
func (m *Mapper1) ClockScanline() {}

// IRQPending is always false for MMC1.
func (m *Mapper1) IRQPending() bool { return false }

// AcknowledgeIRQ is a no-op for MMC1.
func (m *Mapper1) AcknowledgeIRQ() {}
