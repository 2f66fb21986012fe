// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package assembler

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/lassandro/chip8x/pkg/encoding"
	"github.com/lassandro/chip8x/pkg/machine"
)

func parseDirective(ident string) DirectiveType {
	return directives[strings.ToUpper(ident)]
}

func parseInstruction(ident string) InstructionType {
	return instructions[strings.ToUpper(ident)]
}

func parseLiteral(token *Token, bits LiteralType) (uint16, error) {
	var value int

	if encoding.IsHex(token.Value) {
		result, err := encoding.DecodeHex(token.Value)

		if err != nil {
			return 0, &InvalidLiteralError{token.Position}
		}

		value = int(result)
	} else {
		result, err := encoding.DecodeInt(token.Value)

		if err != nil {
			return 0, &InvalidLiteralError{token.Position}
		}

		value = result
	}

	limit := (1 << bits) - 1

	if value < 0 || value > limit {
		return 0, &OversizedLiteralError{token.Position, limit, value}
	}

	return uint16(value), nil
}

// parseRegister accepts V0 through VF.
func parseRegister(token *Token) (uint16, bool) {
	ident := token.Value

	if len(ident) != 2 || (ident[0] != 'V' && ident[0] != 'v') {
		return 0, false
	}

	digit := unicode.ToUpper(rune(ident[1]))

	switch {
	case digit >= '0' && digit <= '9':
		return uint16(digit - '0'), true
	case digit >= 'A' && digit <= 'F':
		return uint16(digit-'A') + 0xA, true
	}

	return 0, false
}

func isRegister(token *Token) bool {
	if token.Type != TOKEN_IDENT {
		return false
	}

	_, ok := parseRegister(token)
	return ok
}

// tokenizeLine splits one source line into tokens. Operands are separated by
// whitespace or commas, comments start with ';' and a label may end in ':'.
func tokenizeLine(line string, cursor Cursor) (tokens []Token, errs []error) {
	var builder strings.Builder
	var tokenType = TOKEN_NONE
	var tokenStart int

	flush := func() {
		if builder.Len() > 0 {
			tokens = append(tokens, Token{
				Type: tokenType,
				Position: Cursor{
					Line:     cursor.Line,
					Column:   tokenStart,
					Byte:     cursor.LineByte + int64(tokenStart-1),
					Size:     int64(builder.Len()),
					LineByte: cursor.LineByte,
				},
				Value: builder.String(),
			})
			builder.Reset()
		}

		tokenType = TOKEN_NONE
	}

	for column, char := range line {
		cursor.Column = column + 1

		if tokenType == TOKEN_NONE {
			tokenStart = cursor.Column
		}

		switch {
		// Whitespace and operand separators
		case unicode.IsSpace(char), char == ',':
			flush()
			continue

		// Comments
		case char == ';':
			flush()
			return

		// Label terminator
		case char == ':':
			if tokenType != TOKEN_IDENT {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}
			flush()
			continue

		// Assembler Directives
		case char == '.':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_DIRECTIVE
			} else {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

		// Hex ($2A) and base 10 (#42) literals
		case char == '$' || char == '#':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
			} else {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

		// Numeric Literal
		case unicode.IsDigit(char):
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
			}

		// Indirect index operand, [I]
		case char == '[' || char == ']':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			} else if tokenType != TOKEN_IDENT {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

		// Underscore'd Identifier
		case char == '_':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			} else if tokenType != TOKEN_IDENT {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

		// Identifier
		case unicode.IsLetter(char):
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{cursor})
			}

			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			}

		default:
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{cursor})
			} else {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}
		}

		builder.WriteRune(char)
	}

	flush()
	return
}

type labelRef struct {
	Label    string
	Addr     uint16
	Word     bool
	Position Cursor
}

type assembly struct {
	image    [machine.MemorySize]byte
	program  int
	end      int
	labels   map[string]uint16
	refs     []labelRef
	errs     []error
	symtable *SymTable
	full     bool
}

func (asm *assembly) fail(err error) {
	asm.errs = append(asm.errs, err)
}

func (asm *assembly) emit(values ...byte) {
	for _, value := range values {
		if asm.program >= machine.MemorySize {
			if !asm.full {
				asm.fail(&OversizedBinaryError{})
				asm.full = true
			}
			return
		}

		asm.image[asm.program] = value
		asm.program++

		if asm.program > asm.end {
			asm.end = asm.program
		}
	}
}

func (asm *assembly) argc(keyword *Token, operands []Token, want int) bool {
	if count := len(operands); count != want {
		asm.fail(&InvalidNumArgumentsError{keyword.Position, want, count})
		return false
	}

	return true
}

func (asm *assembly) register(token *Token) uint16 {
	if token.Type != TOKEN_IDENT {
		asm.fail(&InvalidOperandError{
			token.Position, []TokenType{TOKEN_IDENT}, token.Type,
		})
		return 0
	}

	reg, ok := parseRegister(token)

	if !ok {
		asm.fail(&InvalidRegisterError{token.Position})
	}

	return reg
}

func (asm *assembly) literal(token *Token, bits LiteralType) uint16 {
	if token.Type != TOKEN_LITERAL {
		asm.fail(&InvalidOperandError{
			token.Position, []TokenType{TOKEN_LITERAL}, token.Type,
		})
		return 0
	}

	value, err := parseLiteral(token, bits)

	if err != nil {
		asm.fail(err)
	}

	return value
}

// reference resolves a label operand, deferring unknown labels until the
// whole source has been read.
func (asm *assembly) reference(token *Token, word bool) uint16 {
	if addr, exists := asm.labels[token.Value]; exists {
		return addr
	}

	asm.refs = append(asm.refs, labelRef{
		token.Value, uint16(asm.program), word, token.Position,
	})

	return 0
}

func (asm *assembly) address(token *Token) uint16 {
	switch token.Type {
	case TOKEN_LITERAL:
		return asm.literal(token, LITERAL_ADDR)
	case TOKEN_IDENT:
		return asm.reference(token, false)
	}

	asm.fail(&InvalidOperandError{
		token.Position, []TokenType{TOKEN_LITERAL, TOKEN_IDENT}, token.Type,
	})

	return 0
}

func (asm *assembly) directive(directive DirectiveType, keyword *Token, operands []Token) {
	switch directive {
	// .ORIG addr
	case DIRECTIVE_ORIG:
		if !asm.argc(keyword, operands, 1) {
			return
		}

		origin := asm.literal(&operands[0], LITERAL_WORD)

		if origin < machine.ProgramStart || int(origin) >= machine.MemorySize {
			asm.fail(&InvalidOriginError{operands[0].Position, origin})
			return
		}

		asm.program = int(origin)

	// .BYTE b[, b...]
	case DIRECTIVE_BYTE:
		if len(operands) == 0 {
			asm.fail(&InvalidNumArgumentsError{keyword.Position, 1, 0})
			return
		}

		asm.record(keyword)

		for i := range operands {
			asm.emit(byte(asm.literal(&operands[i], LITERAL_BYTE)))
		}

	// .WORD w|label
	case DIRECTIVE_WORD:
		if !asm.argc(keyword, operands, 1) {
			return
		}

		asm.record(keyword)

		var word uint16

		switch operands[0].Type {
		case TOKEN_IDENT:
			word = asm.reference(&operands[0], true)
		default:
			word = asm.literal(&operands[0], LITERAL_WORD)
		}

		asm.emit(encoding.Bytes(word))

	// .BLKB n
	case DIRECTIVE_BLKB:
		if !asm.argc(keyword, operands, 1) {
			return
		}

		count := asm.literal(&operands[0], LITERAL_WORD)

		for i := uint16(0); i < count && !asm.full; i++ {
			asm.emit(0)
		}
	}
}

func (asm *assembly) record(keyword *Token) {
	if asm.symtable != nil {
		asm.symtable.Symbols[uint16(asm.program)] = keyword.Position.LineByte
	}
}

func (asm *assembly) instruction(instruction InstructionType, keyword *Token, operands []Token) uint16 {
	switch instruction {
	// CLS  |0000|0000|1110|0000|
	case INSTRUCTION_CLS:
		asm.argc(keyword, operands, 0)
		return 0x00E0

	// RET  |0000|0000|1110|1110|
	case INSTRUCTION_RET:
		asm.argc(keyword, operands, 0)
		return 0x00EE

	// JP   |0001|nnn           |
	// JP   |1011|nnn           | V0, nnn
	case INSTRUCTION_JP:
		if len(operands) == 2 {
			if reg := asm.register(&operands[0]); reg != 0 {
				asm.fail(&InvalidRegisterError{operands[0].Position})
			}

			return 0xB000 | asm.address(&operands[1])
		}

		if !asm.argc(keyword, operands, 1) {
			return 0
		}

		return 0x1000 | asm.address(&operands[0])

	// CALL |0010|nnn           |
	case INSTRUCTION_CALL:
		if !asm.argc(keyword, operands, 1) {
			return 0
		}

		return 0x2000 | asm.address(&operands[0])

	// SE   |0011|x   |nn       |
	// SE   |0101|x   |y   |0000|
	// SNE  |0100|x   |nn       |
	// SNE  |1001|x   |y   |0000|
	case INSTRUCTION_SE, INSTRUCTION_SNE:
		if !asm.argc(keyword, operands, 2) {
			return 0
		}

		x := asm.register(&operands[0])

		if isRegister(&operands[1]) {
			y := asm.register(&operands[1])

			if instruction == INSTRUCTION_SE {
				return 0x5000 | x<<8 | y<<4
			}
			return 0x9000 | x<<8 | y<<4
		}

		nn := asm.literal(&operands[1], LITERAL_BYTE)

		if instruction == INSTRUCTION_SE {
			return 0x3000 | x<<8 | nn
		}
		return 0x4000 | x<<8 | nn

	// LD   |0110|x   |nn       |
	// LD   |1000|x   |y   |0000|
	// LD   |1010|nnn           | I, nnn
	case INSTRUCTION_LD:
		if !asm.argc(keyword, operands, 2) {
			return 0
		}

		if operands[0].Type == TOKEN_IDENT && strings.EqualFold(operands[0].Value, "I") {
			return 0xA000 | asm.address(&operands[1])
		}

		x := asm.register(&operands[0])

		if isRegister(&operands[1]) {
			return 0x8000 | x<<8 | asm.register(&operands[1])<<4
		}

		return 0x6000 | x<<8 | asm.literal(&operands[1], LITERAL_BYTE)

	// ADD  |0111|x   |nn       |
	// ADD  |1000|x   |y   |0100|
	case INSTRUCTION_ADD:
		if !asm.argc(keyword, operands, 2) {
			return 0
		}

		x := asm.register(&operands[0])

		if isRegister(&operands[1]) {
			return 0x8004 | x<<8 | asm.register(&operands[1])<<4
		}

		return 0x7000 | x<<8 | asm.literal(&operands[1], LITERAL_BYTE)

	// OR   |1000|x   |y   |n   |
	case INSTRUCTION_OR, INSTRUCTION_AND, INSTRUCTION_XOR,
		INSTRUCTION_SUB, INSTRUCTION_SUBN:
		if !asm.argc(keyword, operands, 2) {
			return 0
		}

		x := asm.register(&operands[0])
		y := asm.register(&operands[1])

		return 0x8000 | x<<8 | y<<4 | aluOps[instruction]

	// SHR  |1000|x   |y   |0110| Vy optional
	// SHL  |1000|x   |y   |1110|
	case INSTRUCTION_SHR, INSTRUCTION_SHL:
		var y uint16

		switch len(operands) {
		case 2:
			y = asm.register(&operands[1])
		case 1:
		default:
			asm.fail(&InvalidNumArgumentsError{keyword.Position, 1, len(operands)})
			return 0
		}

		x := asm.register(&operands[0])

		return 0x8000 | x<<8 | y<<4 | aluOps[instruction]

	// RND  |1100|x   |nn       |
	case INSTRUCTION_RND:
		if !asm.argc(keyword, operands, 2) {
			return 0
		}

		x := asm.register(&operands[0])

		return 0xC000 | x<<8 | asm.literal(&operands[1], LITERAL_BYTE)

	// DRW  |1101|x   |y   |n   |
	case INSTRUCTION_DRW:
		if !asm.argc(keyword, operands, 3) {
			return 0
		}

		x := asm.register(&operands[0])
		y := asm.register(&operands[1])

		return 0xD000 | x<<8 | y<<4 | asm.literal(&operands[2], LITERAL_NIBBLE)
	}

	return 0
}

// AssembleChip8Source assembles source into a program image meant to be
// loaded at machine.ProgramStart. The image ends at the last byte written.
func AssembleChip8Source(input io.Reader, symtable *SymTable) (result []byte, errs []error) {
	asm := assembly{
		program:  machine.ProgramStart,
		end:      machine.ProgramStart,
		labels:   make(map[string]uint16),
		symtable: symtable,
	}

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	// Process:
	// - Tokenize line
	// - Assemble line, deferring forward label references
	for scanner.Scan() && !asm.full {
		line := scanner.Text()

		tokens, lineErrs := tokenizeLine(line, cursor)

		cursor.Line++
		cursor.LineByte += int64(len(line) + 1)

		// Skip assembling lines that failed to tokenize
		if len(lineErrs) > 0 {
			asm.errs = append(asm.errs, lineErrs...)
			continue
		}

		if len(tokens) == 0 {
			continue
		}

		if tokens[0].Type == TOKEN_IDENT && parseInstruction(tokens[0].Value) == INSTRUCTION_INVALID {
			label := &tokens[0]

			if _, exists := asm.labels[label.Value]; exists {
				asm.fail(&RedeclaredLabelError{label.Position, label.Value})
			} else {
				asm.labels[label.Value] = uint16(asm.program)
			}

			tokens = tokens[1:]

			// No need to assemble label-only statements
			if len(tokens) == 0 {
				continue
			}
		}

		keyword := &tokens[0]
		operands := tokens[1:]

		if keyword.Type == TOKEN_DIRECTIVE {
			directive := parseDirective(keyword.Value)

			if directive == DIRECTIVE_INVALID {
				asm.fail(&UnknownIdentifierError{keyword.Position, keyword.Value})
				continue
			}

			if directive == DIRECTIVE_END {
				asm.argc(keyword, operands, 0)
				break
			}

			asm.directive(directive, keyword, operands)
			continue
		}

		instruction := parseInstruction(keyword.Value)

		if keyword.Type != TOKEN_IDENT || instruction == INSTRUCTION_INVALID {
			asm.fail(&UnknownIdentifierError{keyword.Position, keyword.Value})
			continue
		}

		asm.record(keyword)
		asm.emit(encoding.Bytes(asm.instruction(instruction, keyword, operands)))
	}

	if err := scanner.Err(); err != nil {
		asm.fail(err)
	}

	// Label
	// - Validate and resolve label references
	// - Add labels to symbol table
	for _, ref := range asm.refs {
		addr, exists := asm.labels[ref.Label]

		if !exists {
			asm.fail(&UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		if int(ref.Addr)+1 >= machine.MemorySize {
			continue
		}

		hi, lo := encoding.Bytes(addr)

		if ref.Word {
			asm.image[ref.Addr] = hi
		} else {
			asm.image[ref.Addr] |= hi & 0x0F
		}
		asm.image[ref.Addr+1] = lo
	}

	if symtable != nil {
		for label, addr := range asm.labels {
			symtable.Labels[addr] = label
		}
	}

	result = make([]byte, asm.end-machine.ProgramStart)
	copy(result, asm.image[machine.ProgramStart:asm.end])

	return result, asm.errs
}
