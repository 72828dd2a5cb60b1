package m4a

import (
	"encoding/binary"
	"os"
	"time"
)

// writeTestM4A creates a minimal valid M4A file: an ftyp box followed by a
// moov/mvhd with the given creation time and duration.
func writeTestM4A(path string, creationTime time.Time, durationSeconds uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ftyp := []byte{
		0x00, 0x00, 0x00, 0x14, // size: 20 bytes
		'f', 't', 'y', 'p',
		'M', '4', 'A', ' ', // major brand
		0x00, 0x00, 0x00, 0x00, // minor version
		'M', '4', 'A', ' ', // compatible brand
	}
	if _, err := f.Write(ftyp); err != nil {
		return err
	}

	macTime := uint32(creationTime.Sub(macEpoch).Seconds())

	mvhdData := make([]byte, 108)
	mvhdData[0] = 0 // version
	binary.BigEndian.PutUint32(mvhdData[4:8], macTime)                // creation
	binary.BigEndian.PutUint32(mvhdData[8:12], macTime)               // modification
	binary.BigEndian.PutUint32(mvhdData[12:16], 1000)                 // timescale
	binary.BigEndian.PutUint32(mvhdData[16:20], durationSeconds*1000) // duration
	binary.BigEndian.PutUint32(mvhdData[20:24], 0x00010000)           // rate
	binary.BigEndian.PutUint16(mvhdData[24:26], 0x0100)               // volume

	mvhdBox := make([]byte, 8+108)
	binary.BigEndian.PutUint32(mvhdBox[0:4], 116)
	copy(mvhdBox[4:8], []byte("mvhd"))
	copy(mvhdBox[8:], mvhdData)

	moovHeader := make([]byte, 8)
	binary.BigEndian.PutUint32(moovHeader[0:4], uint32(8+len(mvhdBox)))
	copy(moovHeader[4:8], []byte("moov"))

	if _, err := f.Write(moovHeader); err != nil {
		return err
	}
	_, err = f.Write(mvhdBox)
	return err
}

// writeWrongBrand creates a file with a box structure but an unknown brand.
func writeWrongBrand(path string) error {
	ftyp := []byte{
		0x00, 0x00, 0x00, 0x14,
		'f', 't', 'y', 'p',
		'X', 'X', 'X', 'X',
		0x00, 0x00, 0x00, 0x00,
		'X', 'X', 'X', 'X',
	}
	return os.WriteFile(path, ftyp, 0o644)
}
