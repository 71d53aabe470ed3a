package powermeter

import "github.com/sigurn/crc16"

// CRC-16/MODBUS: the firmware XORs each byte into the low byte of the running
// CRC and shifts right through 0xA001, which is the reflected form of
// polynomial 0x8005 with seed 0xFFFF.
var wireCRCParams = crc16.Params{
	Poly:   0x8005,
	Init:   0xFFFF,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Name:   "CRC-16/MODBUS",
}

var crcTable = crc16.MakeTable(wireCRCParams)

// CalcCRC calculates the wire checksum for the given data.
func CalcCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
