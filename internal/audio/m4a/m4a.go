// Package m4a probes M4A/MP4 container headers for duration and creation
// time without decoding any audio.
package m4a

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"
)

// ErrInvalidFormat indicates the file is not a usable M4A/MP4 container.
var ErrInvalidFormat = errors.New("invalid M4A format")

// Info holds header metadata extracted from an audio file.
type Info struct {
	CreationTime time.Time
	Duration     time.Duration
}

// macEpoch is the QuickTime epoch; mvhd timestamps count seconds from it.
var macEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

var compatibleBrands = map[string]bool{
	"M4A ": true,
	"mp41": true,
	"mp42": true,
	"isom": true,
}

// Probe opens the file at path and parses its top-level boxes.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse walks the ISO base media box structure: ftyp for brand validation,
// moov/mvhd for timing.
func parse(r io.ReadSeeker) (*Info, error) {
	info := &Info{}
	var sawFtyp, sawMoov bool

	for {
		size, boxType, err := boxHeader(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if size < 8 {
			return nil, ErrInvalidFormat
		}

		switch boxType {
		case "ftyp":
			if err := checkBrand(r, size-8); err != nil {
				return nil, err
			}
			sawFtyp = true
		case "moov":
			if err := parseMoov(r, size-8, info); err != nil {
				return nil, err
			}
			sawMoov = true
		default:
			if _, err := r.Seek(int64(size-8), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}

	if !sawFtyp || !sawMoov {
		return nil, ErrInvalidFormat
	}
	return info, nil
}

func boxHeader(r io.Reader) (uint32, string, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, "", io.EOF
		}
		return 0, "", err
	}
	return binary.BigEndian.Uint32(header[0:4]), string(header[4:8]), nil
}

func checkBrand(r io.ReadSeeker, remaining uint32) error {
	if remaining < 4 {
		return ErrInvalidFormat
	}
	var brand [4]byte
	if _, err := io.ReadFull(r, brand[:]); err != nil {
		return err
	}
	if !compatibleBrands[string(brand[:])] {
		return ErrInvalidFormat
	}
	if remaining > 4 {
		if _, err := r.Seek(int64(remaining-4), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

func parseMoov(r io.ReadSeeker, remaining uint32, info *Info) error {
	end, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end += int64(remaining)

	for {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= end {
			return nil
		}

		size, boxType, err := boxHeader(r)
		if err != nil {
			return err
		}
		if size < 8 {
			return ErrInvalidFormat
		}

		if boxType == "mvhd" {
			if err := parseMvhd(r, size-8, info); err != nil {
				return err
			}
			continue
		}
		if _, err := r.Seek(int64(size-8), io.SeekCurrent); err != nil {
			return err
		}
	}
}

// parseMvhd reads creation time, timescale and duration from a movie header.
// Only version 0 (32-bit timestamps) carries data we need; version 1 is
// skipped and leaves zero values.
func parseMvhd(r io.ReadSeeker, remaining uint32, info *Info) error {
	var versionFlags [4]byte
	if _, err := io.ReadFull(r, versionFlags[:]); err != nil {
		return err
	}

	if versionFlags[0] != 0 {
		_, err := r.Seek(int64(remaining-4), io.SeekCurrent)
		return err
	}

	// creation(4) modification(4) timescale(4) duration(4)
	var body [16]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return err
	}
	created := binary.BigEndian.Uint32(body[0:4])
	timescale := binary.BigEndian.Uint32(body[8:12])
	duration := binary.BigEndian.Uint32(body[12:16])

	info.CreationTime = macEpoch.Add(time.Duration(created) * time.Second)
	if timescale > 0 {
		info.Duration = time.Duration(duration) * time.Second / time.Duration(timescale)
	}

	read := uint32(4 + len(body))
	if remaining > read {
		if _, err := r.Seek(int64(remaining-read), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}
