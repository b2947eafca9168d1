package digest

// cksumTable is the MSB-first table for the CRC-32 polynomial 0x04C11DB7
// used by POSIX cksum.
var cksumTable = func() [256]uint32 {
	var t [256]uint32

	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}

	return t
}()

// unixCksum returns the checksum printed by POSIX cksum: the CRC of the data
// followed by its length in the fewest little-endian bytes, complemented.
func unixCksum(data []byte) uint32 {
	var crc uint32

	for _, b := range data {
		crc = crc<<8 ^ cksumTable[byte(crc>>24)^b]
	}

	for n := uint64(len(data)); n > 0; n >>= 8 {
		crc = crc<<8 ^ cksumTable[byte(crc>>24)^byte(n)]
	}

	return ^crc
}

// unixSum returns the 16-bit rotating checksum printed by BSD sum.
func unixSum(data []byte) uint32 {
	var sum uint32

	for _, b := range data {
		sum = (sum >> 1) + ((sum & 1) << 15)
		sum = (sum + uint32(b)) & 0xffff
	}

	return sum
}
