// Package memory implements the CPU- and PPU-side memory maps of the NES.
package memory

// Memory represents the NES CPU memory map: 2KB internal RAM, PPU/APU
// register windows, controller ports, and the cartridge beyond 0x4020.
type Memory struct {
	ram [0x800]uint8

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8)

	// openBusValue is the last byte driven onto the CPU data bus by a
	// read; unmapped reads return it. See the Memory bus §4.4
	// open-bus policy for the carve-outs at 0x4015/0x4016/0x4017.
	openBusValue uint8
}

// PPUMemory represents the PPU's 14-bit address space: pattern tables
// (via the cartridge), 2KB of nametable VRAM indexed through the
// current mirroring mode, and 32 bytes of palette RAM.
type PPUMemory struct {
	vram       [0x800]uint8 // 2KB VRAM (nametables)
	paletteRAM [32]uint8
	cartridge  CartridgeInterface
	mirroring  MirrorMode
}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// PPUInterface defines the interface for PPU register access
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for input system access
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for cartridge access
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// New creates a new Memory instance
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	mem := &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
	mem.initializePowerUpRAM()
	return mem
}

// SetInputSystem sets the input system for controller access
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the DMA callback function
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// initializePowerUpRAM fills RAM with the NES's well-documented
// power-up pattern (0xFF throughout, with the zero page cleared) in
// place of true hardware noise, which is unobservable and irrelevant
// to any game's logic once it performs its own init.
func (m *Memory) initializePowerUpRAM() {
	for i := range m.ram {
		m.ram[i] = 0xFF
	}
	for i := 0; i < 0x100; i++ {
		m.ram[i] = 0x00
	}
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8
	preserveLatch := false

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4015:
			// Preserve the latch's upper bits (DMC IRQ flag occupies
			// bit 7, bit 5 is always unset by the hardware) per the
			// open-bus carve-out.
			status := m.apuRegisters.ReadStatus()
			value = (status & 0x1F) | (m.openBusValue & 0xE0)
			preserveLatch = true
		case 0x4016, 0x4017:
			var controller uint8
			if m.inputSystem != nil {
				controller = m.inputSystem.Read(address)
			}
			value = (controller & 0x1F) | (m.openBusValue & 0xE0)
			preserveLatch = true
		default:
			value = m.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}

	case address < 0x8000:
		// Cartridge expansion area ($4020-$5FFF) - unmapped, open bus
		value = m.openBusValue

	default:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}
	}

	if !preserveLatch {
		m.openBusValue = value
	}
	return value
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if m.dmaCallback != nil {
				m.dmaCallback(value)
			} else {
				m.performOAMDMA(value)
			}
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address >= 0x4000 && address <= 0x4013, address == 0x4015, address == 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		}
		// Test mode registers ($4018-$401F) are ignored

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// Cartridge expansion area ($4020-$5FFF) - unmapped, ignore

	default:
		// Some mappers route PRG-space writes to bank-select registers
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// performOAMDMA performs an immediate, synchronous OAM DMA transfer.
// Used only as a fallback when no stall-aware callback has been wired
// by the bus; see bus.TriggerOAMDMA for the cycle-accurate path.
func (m *Memory) performOAMDMA(page uint8) {
	baseAddress := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		value := m.Read(baseAddress + i)
		m.ppuRegisters.WriteRegister(0x2004, value)
	}
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart CartridgeInterface, mirroring MirrorMode) *PPUMemory {
	mem := &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
	for i := 0; i < 32; i += 4 {
		mem.paletteRAM[i] = 0x0F // background color positions boot to black
	}
	return mem
}

// SetMirroring updates the mirroring mode used for nametable indexing.
// The bus calls this after any cartridge PRG-space write, since
// mappers may reassign mirroring mid-frame (MMC1, MMC3).
func (pm *PPUMemory) SetMirroring(mode MirrorMode) {
	pm.mirroring = mode
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.cartridge.ReadCHR(address)
	case address < 0x3000:
		return pm.readNametable(address)
	case address < 0x3F00:
		return pm.readNametable(address - 0x1000)
	default:
		return pm.readPalette(address)
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.cartridge.WriteCHR(address, value)
	case address < 0x3000:
		pm.writeNametable(address, value)
	case address < 0x3F00:
		pm.writeNametable(address-0x1000, value)
	default:
		pm.writePalette(address, value)
	}
}

func (pm *PPUMemory) readNametable(address uint16) uint8 {
	return pm.vram[pm.getNametableIndex(address)]
}

func (pm *PPUMemory) writeNametable(address uint16, value uint8) {
	pm.vram[pm.getNametableIndex(address)] = value
}

// getNametableIndex maps a 0x2000-0x2FFF PPU address into the 2KB
// on-board VRAM per the current mirroring mode (§4.4). FourScreen is
// treated as Horizontal: the console's 2KB VRAM cannot hold four
// independent 1KB nametables without cartridge-side expansion RAM,
// which this engine does not model.
func (pm *PPUMemory) getNametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	offset := address & 0x3FF

	switch pm.mirroring {
	case MirrorVertical:
		if address&0x400 != 0 {
			return 0x400 + offset
		}
		return offset
	case MirrorSingleScreen0:
		return offset
	case MirrorSingleScreen1:
		return 0x400 + offset
	default: // Horizontal, FourScreen
		if address >= 0x800 {
			return 0x400 + offset
		}
		return offset
	}
}

// readPalette reads from palette RAM with the background-color write-mirror applied.
func (pm *PPUMemory) readPalette(address uint16) uint8 {
	index := (address - 0x3F00) & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return pm.paletteRAM[index]
}

// writePalette writes to palette RAM; addresses 0x10/0x14/0x18/0x1C
// mirror to 0x00/0x04/0x08/0x0C (testable property #4).
func (pm *PPUMemory) writePalette(address uint16, value uint8) {
	index := (address - 0x3F00) & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	pm.paletteRAM[index] = value
}
