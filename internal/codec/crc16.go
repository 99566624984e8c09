package codec

import "encoding/binary"

// crcTable is the CRC-16/ARC lookup table (poly 0xA001, LSB first).
var crcTable = func() (t [256]uint16) {
	for i := range t {
		crc := uint16(i)
		for b := 0; b < 8; b++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// Crc16 computes the CRC-16/ARC checksum of p. Initial value and
// final XOR are both zero.
func Crc16(p []byte) uint16 {
	var crc uint16
	for _, b := range p {
		crc = crc>>8 ^ crcTable[byte(crc)^b]
	}
	return crc
}

// VerifyFrame checks the trailing 4-byte checksum field of a full
// frame against the CRC of the region between the 8-byte header and
// the checksum field itself. Frames too short to hold both are
// rejected outright.
func VerifyFrame(frame []byte) bool {
	if len(frame) < 12 {
		return false
	}
	want := binary.BigEndian.Uint32(frame[len(frame)-4:])
	return uint32(Crc16(frame[8:len(frame)-4])) == want
}
