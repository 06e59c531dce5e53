package emulator

import (
	"fmt"
)

// instruction is a raw 16-bit opcode with accessors for its bit fields.
type instruction uint16

func (op instruction) family() uint16 { return uint16(op) >> 12 }
func (op instruction) nnn() uint16 { return uint16(op) & 0x0FFF }
func (op instruction) nn() uint8 { return uint8(op & 0xFF) }
func (op instruction) n() uint8 { return uint8(op & 0x0F) }
func (op instruction) x() uint8 { return uint8((op >> 8) & 0xF) }
func (op instruction) y() uint8 { return uint8((op >> 4) & 0xF) }

type operation struct {
	mnemonic func(op instruction) string
	exec     func(m *Machine, op instruction) error
}

// opFamily selects an operation within one high-nibble family. A family
// without a selector has a single operation.
type opFamily struct {
	single   *operation
	selector func(op instruction) uint16
	ops      map[uint16]*operation
	fallback *operation
}

func byNNN(op instruction) uint16 { return op.nnn() }
func byNN(op instruction) uint16 { return uint16(op.nn()) }
func byN(op instruction) uint16 { return uint16(op.n()) }

var opcodeTable = [16]opFamily{
	0x0: {selector: byNNN, ops: map[uint16]*operation{
		0x0E0: opCLS,
		0x0EE: opRET,
	}, fallback: opSYS},
	0x1: {single: opJP},
	0x2: {single: opCALL},
	0x3: {single: opSEByte},
	0x4: {single: opSNEByte},
	0x5: {single: opSEReg},
	0x6: {single: opLDByte},
	0x7: {single: opADDByte},
	0x8: {selector: byN, ops: map[uint16]*operation{
		0x0: opLDReg,
		0x1: opOR,
		0x2: opAND,
		0x3: opXOR,
		0x4: opADDReg,
		0x5: opSUB,
		0x6: opSHR,
		0x7: opSUBN,
		0xE: opSHL,
	}},
	0x9: {single: opSNEReg},
	0xA: {single: opLDI},
	0xB: {single: opJPV0},
	0xC: {single: opRND},
	0xD: {single: opDRW},
	0xE: {selector: byNN, ops: map[uint16]*operation{
		0x9E: opSKP,
		0xA1: opSKNP,
	}},
	0xF: {selector: byNN, ops: map[uint16]*operation{
		0x07: opLDVxDT,
		0x0A: opLDVxK,
		0x15: opLDDTVx,
		0x18: opLDSTVx,
		0x1E: opADDI,
		0x29: opLDF,
		0x33: opLDB,
		0x55: opLDIVx,
		0x65: opLDVxI,
	}},
}

// decode looks up the operation for op. Unknown opcodes report false.
func decode(op instruction) (*operation, bool) {
	f := &opcodeTable[op.family()]
	if f.selector == nil {
		return f.single, f.single != nil
	}
	if o, ok := f.ops[f.selector(op)]; ok {
		return o, true
	}
	return f.fallback, f.fallback != nil
}

// mnemonic returns the assembly form of op, or "???" if it does not decode.
func mnemonic(op uint16) string {
	o, ok := decode(instruction(op))
	if !ok {
		return "???"
	}
	return o.mnemonic(instruction(op))
}

func (m *Machine) execOpcode(op uint16) error {
	in := instruction(op)
	o, ok := decode(in)
	if !ok {
		// unknown opcodes are skipped
		return nil
	}
	if err := o.exec(m, in); err != nil {
		return fmt.Errorf("%03X-%04X %s: %w", m.pc-2, op, o.mnemonic(in), err)
	}
	return nil
}

func skipIf(m *Machine, cond bool) {
	if cond {
		m.pc += 2
	}
}

var opSYS = &operation{ // 0NNN machine code routine, ignored
	func(op instruction) string { return fmt.Sprintf("SYS  %03X", op.nnn()) },
	func(m *Machine, op instruction) error { return nil },
}

var opCLS = &operation{ // 00E0 clear display
	func(op instruction) string { return "CLS" },
	func(m *Machine, op instruction) error {
		m.disp = Framebuffer{}
		m.redraw = true
		return nil
	},
}

var opRET = &operation{ // 00EE return from subroutine
	func(op instruction) string { return "RET" },
	func(m *Machine, op instruction) error {
		r, err := m.popStack()
		if err != nil {
			return err
		}
		m.pc = r
		return nil
	},
}

var opJP = &operation{ // 1NNN goto NNN
	func(op instruction) string { return fmt.Sprintf("GOTO %03X", op.nnn()) },
	func(m *Machine, op instruction) error {
		m.pc = op.nnn()
		return nil
	},
}

var opCALL = &operation{ // 2NNN call NNN
	func(op instruction) string { return fmt.Sprintf("CALL %03X", op.nnn()) },
	func(m *Machine, op instruction) error {
		if err := m.pushStack(m.pc); err != nil {
			return err
		}
		m.pc = op.nnn()
		return nil
	},
}

var opSEByte = &operation{ // 3XNN if(Vx==NN)
	func(op instruction) string { return fmt.Sprintf("SE   V%0X,#%02X", op.x(), op.nn()) },
	func(m *Machine, op instruction) error {
		skipIf(m, m.v[op.x()] == op.nn())
		return nil
	},
}

var opSNEByte = &operation{ // 4XNN if(Vx!=NN)
	func(op instruction) string { return fmt.Sprintf("SNE  V%0X,#%02X", op.x(), op.nn()) },
	func(m *Machine, op instruction) error {
		skipIf(m, m.v[op.x()] != op.nn())
		return nil
	},
}

var opSEReg = &operation{ // 5XY0 if(Vx==Vy)
	func(op instruction) string { return fmt.Sprintf("SE   V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		skipIf(m, m.v[op.x()] == m.v[op.y()])
		return nil
	},
}

var opLDByte = &operation{ // 6XNN Vx = NN
	func(op instruction) string { return fmt.Sprintf("LD   V%0X,#%02X", op.x(), op.nn()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] = op.nn()
		return nil
	},
}

var opADDByte = &operation{ // 7XNN Vx += NN (Carry flag is not changed)
	func(op instruction) string { return fmt.Sprintf("ADD  V%0X,#%02X", op.x(), op.nn()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] += op.nn()
		return nil
	},
}

var opLDReg = &operation{ // 8XY0 Vx=Vy
	func(op instruction) string { return fmt.Sprintf("LD   V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] = m.v[op.y()]
		return nil
	},
}

var opOR = &operation{ // 8XY1 Vx=Vx|Vy
	func(op instruction) string { return fmt.Sprintf("OR   V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] |= m.v[op.y()]
		return nil
	},
}

var opAND = &operation{ // 8XY2 Vx=Vx&Vy
	func(op instruction) string { return fmt.Sprintf("AND  V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] &= m.v[op.y()]
		return nil
	},
}

var opXOR = &operation{ // 8XY3 Vx=Vx^Vy
	func(op instruction) string { return fmt.Sprintf("XOR  V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] ^= m.v[op.y()]
		return nil
	},
}

// The flag-setting ALU ops write VF last, so the flag wins when X is F.

var opADDReg = &operation{ // 8XY4 Vx += Vy
	func(op instruction) string { return fmt.Sprintf("ADD  V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		x, y := m.v[op.x()], m.v[op.y()]
		m.v[op.x()] = x + y
		m.updateCarryFlag(uint16(x)+uint16(y) > 0xff)
		return nil
	},
}

var opSUB = &operation{ // 8XY5 Vx -= Vy
	func(op instruction) string { return fmt.Sprintf("SUB  V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		x, y := m.v[op.x()], m.v[op.y()]
		m.v[op.x()] = x - y
		m.updateCarryFlag(x >= y)
		return nil
	},
}

var opSHR = &operation{ // 8XY6 Vx>>=1
	func(op instruction) string { return fmt.Sprintf("SHR  V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		x := m.v[op.x()]
		m.v[op.x()] = x >> 1
		m.updateCarryFlag(x&0x01 == 1)
		return nil
	},
}

var opSUBN = &operation{ // 8XY7 Vx=Vy-Vx
	func(op instruction) string { return fmt.Sprintf("SUBN V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		x, y := m.v[op.x()], m.v[op.y()]
		m.v[op.x()] = y - x
		m.updateCarryFlag(y >= x)
		return nil
	},
}

var opSHL = &operation{ // 8XYE Vx<<=1
	func(op instruction) string { return fmt.Sprintf("SHL  V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		x := m.v[op.x()]
		m.v[op.x()] = x << 1
		m.updateCarryFlag(x>>7 == 1)
		return nil
	},
}

var opSNEReg = &operation{ // 9XY0 if(Vx!=Vy)
	func(op instruction) string { return fmt.Sprintf("SNE  V%0X,V%0X", op.x(), op.y()) },
	func(m *Machine, op instruction) error {
		skipIf(m, m.v[op.x()] != m.v[op.y()])
		return nil
	},
}

var opLDI = &operation{ // ANNN I = NNN
	func(op instruction) string { return fmt.Sprintf("LD   I,#%04X", op.nnn()) },
	func(m *Machine, op instruction) error {
		m.i = op.nnn()
		return nil
	},
}

var opJPV0 = &operation{ // BNNN PC=V0+NNN
	func(op instruction) string { return fmt.Sprintf("JP   V0,#%04X", op.nnn()) },
	func(m *Machine, op instruction) error {
		m.pc = (op.nnn() + uint16(m.v[0])) & AddressMask
		return nil
	},
}

var opRND = &operation{ // CXNN Vx=rand()&NN
	func(op instruction) string { return fmt.Sprintf("RND  V%0X,#%02X", op.x(), op.nn()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] = uint8(m.rnd.Intn(256)) & op.nn()
		return nil
	},
}

var opDRW = &operation{ // DXYN draw(Vx,Vy,N)
	func(op instruction) string { return fmt.Sprintf("DRW  V%0X,V%0X,%d", op.x(), op.y(), op.n()) },
	func(m *Machine, op instruction) error {
		flipped := m.draw(m.v[op.x()], m.v[op.y()], op.n())
		m.updateCarryFlag(flipped)
		return nil
	},
}

var opSKP = &operation{ // EX9E if(key()==Vx)
	func(op instruction) string { return fmt.Sprintf("SKP  V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		skipIf(m, m.keys[m.v[op.x()]&0xf])
		return nil
	},
}

var opSKNP = &operation{ // EXA1 if(key()!=Vx)
	func(op instruction) string { return fmt.Sprintf("SKNP V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		skipIf(m, !m.keys[m.v[op.x()]&0xf])
		return nil
	},
}

var opLDVxDT = &operation{ // FX07 Vx = get_delay()
	func(op instruction) string { return fmt.Sprintf("LD   V%0X,DT", op.x()) },
	func(m *Machine, op instruction) error {
		m.v[op.x()] = m.dt
		return nil
	},
}

var opLDVxK = &operation{ // FX0A Vx = get_key()
	func(op instruction) string { return fmt.Sprintf("LD   V%0X,K", op.x()) },
	func(m *Machine, op instruction) error {
		k, ok := m.pressedKey()
		if !ok {
			// pc decrement for blocking
			m.pc -= 2
			return nil
		}
		m.v[op.x()] = k
		return nil
	},
}

var opLDDTVx = &operation{ // FX15 delay_timer(Vx)
	func(op instruction) string { return fmt.Sprintf("LD   DT,V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		m.dt = m.v[op.x()]
		return nil
	},
}

var opLDSTVx = &operation{ // FX18 sound_timer(Vx)
	func(op instruction) string { return fmt.Sprintf("LD   ST,V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		m.st = m.v[op.x()]
		return nil
	},
}

var opADDI = &operation{ // FX1E I +=Vx
	func(op instruction) string { return fmt.Sprintf("ADD  I,V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		m.i += uint16(m.v[op.x()])
		return nil
	},
}

var opLDF = &operation{ // FX29 I=sprite_addr[Vx]
	func(op instruction) string { return fmt.Sprintf("LD   F,V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		m.i = CharacterSpritesOffset + uint16(m.v[op.x()])*CharacterSpriteBytes
		return nil
	},
}

var opLDB = &operation{ // FX33 set_BCD(Vx)
	func(op instruction) string { return fmt.Sprintf("LD   B,V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		v := m.v[op.x()]
		m.write(m.i+0, v/100)
		m.write(m.i+1, (v%100)/10)
		m.write(m.i+2, v%10)
		return nil
	},
}

var opLDIVx = &operation{ // FX55 reg_dump(Vx,&I)
	func(op instruction) string { return fmt.Sprintf("LD   [I],V%0X", op.x()) },
	func(m *Machine, op instruction) error {
		for r := uint16(0); r <= uint16(op.x()); r++ {
			m.write(m.i+r, m.v[r])
		}
		return nil
	},
}

var opLDVxI = &operation{ // FX65 reg_load(Vx,&I)
	func(op instruction) string { return fmt.Sprintf("LD   V%0X,[I]", op.x()) },
	func(m *Machine, op instruction) error {
		for r := uint16(0); r <= uint16(op.x()); r++ {
			m.v[r] = m.read(m.i + r)
		}
		return nil
	},
}
